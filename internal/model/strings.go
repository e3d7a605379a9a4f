package model

import (
	"database/sql/driver"

	"github.com/lib/pq"
)

// StringList is a text[] column. It encodes to JSON as a plain array.
type StringList []string

func (l *StringList) Scan(src any) error {
	return (*pq.StringArray)(l).Scan(src)
}

func (l StringList) Value() (driver.Value, error) {
	return pq.StringArray(l).Value()
}
