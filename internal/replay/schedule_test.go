package replay

import (
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/episim/internal/models"
)

func TestReadSchedule(t *testing.T) {
	input := `
{"type":"actend","time":28800,"person":"p1","container":"h1","activity":"home"}
{"type":"actstart","time":28800,"person":"p1","container":"w1","activity":"work"}
{"type":"actend","time":3600,"person":"p1","container":"h1","activity":"home","day":"saturday"}
{"type":"actstart","time":3600,"person":"p1","container":"l1","activity":"leisure","day":"sat"}
`
	s, err := ReadSchedule(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadSchedule() error = %v", err)
	}
	if len(s.Streams) != 2 {
		t.Fatalf("len(Streams) = %d, want 2", len(s.Streams))
	}
	if got := s.StreamIndex(time.Saturday); got == s.StreamIndex(time.Monday) {
		t.Errorf("saturday shares stream %d with monday", got)
	}
	sat := s.Stream(time.Saturday)
	if len(sat) != 2 || sat[1].Container != "l1" {
		t.Errorf("saturday stream = %+v", sat)
	}
	mon := s.Stream(time.Monday)
	if len(mon) != 2 || mon[0].Type != models.ActivityEnd {
		t.Errorf("monday stream = %+v", mon)
	}
}

func TestReadSchedule_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"invalid json", `{"type":"actend",`},
		{"unknown type", `{"type":"teleport","time":1,"person":"p","container":"c","activity":"home"}`},
		{"unknown weekday", `{"type":"actend","time":1,"person":"p","container":"c","activity":"home","day":"someday"}`},
		{"missing person", `{"type":"actend","time":1,"container":"c","activity":"home"}`},
		{"missing activity", `{"type":"actend","time":1,"person":"p","container":"c"}`},
		{"negative time", `{"type":"actend","time":-1,"person":"p","container":"c","activity":"home"}`},
		{"empty", ``},
		{"time goes backwards", `{"type":"actend","time":10,"person":"p","container":"c","activity":"home"}
{"type":"actstart","time":5,"person":"p","container":"d","activity":"work"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadSchedule(strings.NewReader(tt.input)); err == nil {
				t.Error("ReadSchedule() error = nil, want error")
			}
		})
	}
}

func TestReadSchedule_VehicleWithoutActivity(t *testing.T) {
	input := `{"type":"enter","time":1,"person":"p","container":"bus"}
{"type":"leave","time":2,"person":"p","container":"bus"}`
	if _, err := ReadSchedule(strings.NewReader(input)); err != nil {
		t.Fatalf("ReadSchedule() error = %v", err)
	}
}

func TestNewSchedule_Dedupes(t *testing.T) {
	def := []models.Event{{Type: models.ActivityEnd, Time: 1, Person: "p", Container: "h", Activity: "home"}}
	same := []models.Event{{Type: models.ActivityEnd, Time: 1, Person: "p", Container: "h", Activity: "home"}}
	other := []models.Event{{Type: models.ActivityEnd, Time: 2, Person: "p", Container: "h", Activity: "home"}}

	s := NewSchedule(def, map[time.Weekday][]models.Event{
		time.Sunday:   other,
		time.Saturday: same,
	})
	if len(s.Streams) != 2 {
		t.Fatalf("len(Streams) = %d, want 2", len(s.Streams))
	}
	if s.StreamIndex(time.Saturday) != s.StreamIndex(time.Wednesday) {
		t.Error("identical saturday stream was not shared")
	}
}

func TestParseWeekday(t *testing.T) {
	for _, in := range []string{"Tuesday", "tue", "TUESDAY"} {
		d, err := ParseWeekday(in)
		if err != nil || d != time.Tuesday {
			t.Errorf("ParseWeekday(%q) = %v, %v", in, d, err)
		}
	}
	if _, err := ParseWeekday("tu"); err == nil {
		t.Error("ParseWeekday(tu) error = nil")
	}
}

func TestReadAttributes(t *testing.T) {
	input := "id,district,age,home\np1,north,34,h1\np2,,,\n"
	attrs, err := ReadAttributes(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ReadAttributes() error = %v", err)
	}
	if got := attrs["p1"]; got.District != "north" || got.Age != 34 || got.HomeID != "h1" {
		t.Errorf("p1 = %+v", got)
	}
	if got := attrs["p2"]; got != (models.Attributes{}) {
		t.Errorf("p2 = %+v, want zero", got)
	}
}

func TestReadAttributes_Errors(t *testing.T) {
	tests := map[string]string{
		"no id column": "district,age\nnorth,3\n",
		"bad age":      "id,age\np1,old\n",
		"empty id":     "id,age\n,3\n",
		"no header":    "",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ReadAttributes(strings.NewReader(input)); err == nil {
				t.Error("ReadAttributes() error = nil, want error")
			}
		})
	}
}
