// Package timeline shapes scheduled appointment payloads into day groups
// for the schedule card.
package timeline

import (
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Appointment is one scheduled call as found in the payload.
type Appointment struct {
	ID             string
	SchedStartTime string
	Subject        string
	AccountName    string
	ProductName    string
	Street         string
}

// Item is an appointment ready for display.
type Item struct {
	ID           string `json:"id"`
	DateKey      string `json:"dateKey"`
	Date         string `json:"date"`
	Time         string `json:"time"`
	Product      string `json:"product"`
	Link         string `json:"link"`
	Subject      string `json:"subject"`
	SubjectShort string `json:"subjectShort"`
	Street       string `json:"street"`
	LocationText string `json:"locationText"`
	Expanded     bool   `json:"expanded"`
}

// DateGroup holds the items of one calendar day.
type DateGroup struct {
	Date     string `json:"date"`
	Items    []Item `json:"items"`
	Expanded bool   `json:"expanded"`
}

// Display defaults.
const (
	NoSubject   = "No Subject"
	VirtualCall = "Virtual Call"
)

var startLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Extract finds the appointment list in raw. Accepted shapes are
// [{result:{appointments}}], {result:{appointments}}, {appointments} and a
// bare array; a JSON string holding one of those is unwrapped first.
// Input that is not JSON yields no appointments.
func Extract(raw []byte) []Appointment {
	if !gjson.ValidBytes(raw) {
		return nil
	}
	doc := gjson.ParseBytes(raw)
	if doc.Type == gjson.String && gjson.Valid(doc.Str) {
		doc = gjson.Parse(doc.Str)
	}

	var list gjson.Result
	switch {
	case doc.IsArray() && doc.Get("0.result.appointments").Exists():
		list = doc.Get("0.result.appointments")
	case doc.Get("result.appointments").Exists():
		list = doc.Get("result.appointments")
	case doc.Get("appointments").Exists():
		list = doc.Get("appointments")
	case doc.IsArray():
		list = doc
	default:
		return nil
	}

	var out []Appointment
	for _, item := range list.Array() {
		if !item.IsObject() {
			continue
		}
		out = append(out, Appointment{
			ID:             item.Get("Id").String(),
			SchedStartTime: item.Get("SchedStartTime").String(),
			Subject:        item.Get("Subject").String(),
			AccountName:    item.Get("AccountName").String(),
			ProductName:    item.Get("ProductName").String(),
			Street:         firstString(item, "street", "Street", "Address"),
		})
	}
	return out
}

func firstString(item gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := item.Get(p).String(); v != "" {
			return v
		}
	}
	return ""
}

// Group converts appointments to display items and groups them by day in
// loc, keeping the order in which each day first appears. Appointments
// without a parseable start time are skipped. Every group and item starts
// expanded.
func Group(appts []Appointment, loc *time.Location) []DateGroup {
	if loc == nil {
		loc = time.UTC
	}

	var groups []DateGroup
	index := make(map[string]int)

	for _, a := range appts {
		start, ok := parseStart(a.SchedStartTime)
		if !ok {
			continue
		}
		item := toItem(a, start.In(loc))

		i, seen := index[item.DateKey]
		if !seen {
			i = len(groups)
			index[item.DateKey] = i
			groups = append(groups, DateGroup{Date: item.Date, Expanded: true})
		}
		groups[i].Items = append(groups[i].Items, item)
	}
	return groups
}

func parseStart(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range startLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func toItem(a Appointment, start time.Time) Item {
	date := strings.ToUpper(start.Format("02 Jan 2006"))

	subject := a.Subject
	if subject == "" {
		subject = NoSubject
	}
	full := subject
	if a.AccountName != "" {
		full = subject + " with " + a.AccountName
	}

	location := a.Street
	if location == "" {
		location = VirtualCall
	}

	return Item{
		ID:           a.ID,
		DateKey:      date,
		Date:         date,
		Time:         start.Format("3:04 PM"),
		Product:      a.ProductName,
		Link:         "/lightning/r/ServiceAppointment/" + a.ID + "/view",
		Subject:      full,
		SubjectShort: subject,
		Street:       a.Street,
		LocationText: location,
		Expanded:     true,
	}
}
