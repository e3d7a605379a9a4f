package model_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unclebandit/aidplug-crm/internal/model"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "2024-06-08", want: "2024-06-08"},
		{in: "2024-06-08T23:15:00+04:00", want: "2024-06-08"},
		{in: "08/06/2024", wantErr: true},
		{in: "2024-6-8", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			d, err := model.ParseDate(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.String())
		})
	}
}

func TestDateJSON(t *testing.T) {
	type row struct {
		DueDate model.Date  `json:"due_date"`
		DOB     *model.Date `json:"dob"`
	}

	b, err := json.Marshal(row{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"due_date":null,"dob":null}`, string(b))

	var r row
	require.NoError(t, json.Unmarshal([]byte(`{"due_date":"2024-06-10","dob":"1990-02-28"}`), &r))
	assert.Equal(t, model.MustDate("2024-06-10"), r.DueDate)
	require.NotNil(t, r.DOB)
	assert.Equal(t, "1990-02-28", r.DOB.String())

	assert.Error(t, json.Unmarshal([]byte(`{"due_date":"tomorrow"}`), &r))
}

func TestNullDatePatch(t *testing.T) {
	b, err := json.Marshal(map[string]*model.NullDate{
		"set":   model.SetDate(model.MustDate("2024-06-10")),
		"clear": model.ClearDate(),
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"set":"2024-06-10","clear":null}`, string(b))

	var n model.NullDate
	require.NoError(t, json.Unmarshal([]byte(`"2024-06-10"`), &n))
	assert.True(t, n.Valid)
	require.NoError(t, json.Unmarshal([]byte(`null`), &n))
	assert.False(t, n.Valid)
}

func TestDateArithmetic(t *testing.T) {
	d := model.MustDate("2024-02-28")
	assert.Equal(t, "2024-02-29", d.AddDays(1).String())
	assert.Equal(t, "2024-03-01", d.AddDays(2).String())
	assert.Equal(t, "2024-02-21", d.AddDays(-7).String())

	leap := model.MustDate("2000-02-29")
	assert.Equal(t, "2024-02-29", leap.WithYear(2024).String())
	assert.Equal(t, "2023-03-01", leap.WithYear(2023).String())

	assert.True(t, d.Before(d.AddDays(1)))
	assert.True(t, d.After(model.MustDate("2023-12-31")))
	assert.False(t, d.Before(d))

	assert.Equal(t, "2024-06-08", model.DateOf(time.Date(2024, 6, 8, 23, 59, 0, 0, time.UTC)).String())
}

func TestDateScan(t *testing.T) {
	var d model.Date
	require.NoError(t, d.Scan(time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-06-10", d.String())
	require.NoError(t, d.Scan([]byte("1990-02-28")))
	assert.Equal(t, "1990-02-28", d.String())
	require.NoError(t, d.Scan(nil))
	assert.True(t, d.IsZero())
	assert.Error(t, d.Scan(42))

	v, err := model.MustDate("2024-06-10").Value()
	require.NoError(t, err)
	assert.Equal(t, "2024-06-10", v)
	v, err = model.Date{}.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestStringListScan(t *testing.T) {
	var l model.StringList
	require.NoError(t, l.Scan([]byte(`{personal_loan,"credit card"}`)))
	assert.Equal(t, model.StringList{"personal_loan", "credit card"}, l)

	b, err := json.Marshal(l)
	require.NoError(t, err)
	assert.JSONEq(t, `["personal_loan","credit card"]`, string(b))

	v, err := l.Value()
	require.NoError(t, err)
	assert.Equal(t, `{"personal_loan","credit card"}`, v)
}
