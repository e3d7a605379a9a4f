// Package dashboard derives the dashboard figures and the upcoming
// birthdays and anniversaries from the collections.
package dashboard

import (
	"sort"
	"time"

	"github.com/unclebandit/aidplug-crm/internal/model"
)

// WindowDays is how far ahead UpcomingEvents looks, inclusive of today.
const WindowDays = 7

type EventKind string

const (
	Birthday    EventKind = "birthday"
	Anniversary EventKind = "anniversary"
)

// Event is a client date falling inside the window.
type Event struct {
	Kind       EventKind  `json:"type"`
	ClientID   string     `json:"client_id"`
	ClientName string     `json:"client_name"`
	Date       model.Date `json:"date"`
	// Years is set for anniversaries only.
	Years int `json:"years,omitempty"`
}

// UpcomingEvents returns the birthdays and client anniversaries that fall
// between today and today+WindowDays, earliest first. Dates are compared
// without time of day, in now's location.
func UpcomingEvents(clients []model.Client, now time.Time) []Event {
	today := model.DateOf(now)
	end := today.AddDays(WindowDays)
	inWindow := func(d model.Date) bool { return !d.Before(today) && !d.After(end) }

	events := []Event{}
	for _, c := range clients {
		if c.DOB != nil && !c.DOB.IsZero() {
			if d := c.DOB.WithYear(today.Year); inWindow(d) {
				events = append(events, Event{Kind: Birthday, ClientID: c.ID, ClientName: c.FullName, Date: d})
			}
		}
		if c.ClientSince != nil && !c.ClientSince.IsZero() {
			years := today.Year - c.ClientSince.Year
			if d := c.ClientSince.WithYear(today.Year); years > 0 && inWindow(d) {
				events = append(events, Event{Kind: Anniversary, ClientID: c.ID, ClientName: c.FullName, Date: d, Years: years})
			}
		}
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].Date.Before(events[j].Date) })
	return events
}
