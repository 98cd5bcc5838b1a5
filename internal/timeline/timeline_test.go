package timeline

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const appts = `[
  {"Id":"a1","SchedStartTime":"2024-03-05T14:30:00Z","Subject":"Demo","AccountName":"Acme","street":"1 Main St"},
  {"Id":"a2","SchedStartTime":"2024-03-06T09:00:00Z","Address":"9 Side Rd"},
  {"Id":"a3","Subject":"Unscheduled"},
  {"Id":"a4","SchedStartTime":"2024-03-05T16:00:00.000+0000","Subject":"Follow up","ProductName":"Widgets"}
]`

func TestExtract_Shapes(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"wrapped array", `[{"result":{"appointments":` + appts + `}}]`, 4},
		{"result object", `{"result":{"appointments":` + appts + `}}`, 4},
		{"appointments object", `{"appointments":` + appts + `}`, 4},
		{"bare array", appts, 4},
		{"json string", strconv.Quote(`{"appointments":` + appts + `}`), 4},
		{"empty list", `{"appointments":[]}`, 0},
		{"unrelated object", `{"foo":1}`, 0},
		{"not json", `hello there`, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, Extract([]byte(tt.raw)), tt.want)
		})
	}
}

func TestExtract_Fields(t *testing.T) {
	got := Extract([]byte(appts))

	require.Len(t, got, 4)
	assert.Equal(t, "1 Main St", got[0].Street)
	assert.Equal(t, "9 Side Rd", got[1].Street)
	assert.Equal(t, "Widgets", got[3].ProductName)
}

func TestGroup(t *testing.T) {
	groups := Group(Extract([]byte(appts)), time.UTC)

	require.Len(t, groups, 2)
	assert.Equal(t, "05 MAR 2024", groups[0].Date)
	assert.Equal(t, "06 MAR 2024", groups[1].Date)
	assert.True(t, groups[0].Expanded)

	require.Len(t, groups[0].Items, 2)
	first := groups[0].Items[0]
	assert.Equal(t, "Demo with Acme", first.Subject)
	assert.Equal(t, "Demo", first.SubjectShort)
	assert.Equal(t, "2:30 PM", first.Time)
	assert.Equal(t, "1 Main St", first.LocationText)
	assert.Equal(t, "/lightning/r/ServiceAppointment/a1/view", first.Link)
	assert.True(t, first.Expanded)

	assert.Equal(t, "4:00 PM", groups[0].Items[1].Time)
	assert.Equal(t, "Follow up", groups[0].Items[1].Subject)

	second := groups[1].Items[0]
	assert.Equal(t, NoSubject, second.Subject)
	assert.Equal(t, "9 Side Rd", second.LocationText)
}

func TestGroup_VirtualCallAndLocation(t *testing.T) {
	loc := time.FixedZone("UTC-10", -10*3600)
	groups := Group([]Appointment{{ID: "x", SchedStartTime: "2024-03-05T05:00:00Z"}}, loc)

	require.Len(t, groups, 1)
	assert.Equal(t, "04 MAR 2024", groups[0].Date)
	assert.Equal(t, VirtualCall, groups[0].Items[0].LocationText)
	assert.Equal(t, "7:00 PM", groups[0].Items[0].Time)
}

func TestGroup_Empty(t *testing.T) {
	assert.Empty(t, Group(nil, nil))
	assert.Empty(t, Group([]Appointment{{ID: "bad", SchedStartTime: "tomorrow"}}, nil))
}
