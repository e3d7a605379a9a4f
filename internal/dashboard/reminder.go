package dashboard

import (
	"strconv"
	"strings"
)

var reminderTemplates = map[EventKind]string{
	Birthday:    "{client_name} has a birthday on {date}",
	Anniversary: "{client_name} celebrates {years} years as a client on {date}",
}

// RenderTemplate replaces each {key} in template with data[key]. Empty
// values render as N/A.
func RenderTemplate(template string, data map[string]string) string {
	result := template
	for k, v := range data {
		if v == "" {
			v = "N/A"
		}
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// Describe renders a one-line reminder for e.
func Describe(e Event) string {
	return RenderTemplate(reminderTemplates[e.Kind], map[string]string{
		"client_name": e.ClientName,
		"date":        e.Date.String(),
		"years":       strconv.Itoa(e.Years),
	})
}
