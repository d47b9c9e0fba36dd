package models

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	cases := []struct {
		in      string
		minutes int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"10:30", 630, false},
		{"23:59", 1439, false},
		{"24:00", 0, true},
		{"10:61", 0, true},
		{"1030", 0, true},
		{"", 0, true},
	}

	for _, c := range cases {
		got, err := ParseClock(c.in)
		if c.wantErr {
			if err == nil {
				t.Errorf("ParseClock(%q): expected error, got %d", c.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseClock(%q): %v", c.in, err)
			continue
		}
		if got != c.minutes {
			t.Errorf("ParseClock(%q) = %d, want %d", c.in, got, c.minutes)
		}
	}
}

func TestDayOfWeekOrdinal(t *testing.T) {
	want := map[DayOfWeek]int{
		Monday: 0, Tuesday: 1, Wednesday: 2, Thursday: 3,
		Friday: 4, Saturday: 5, Sunday: 6,
	}
	for day, ord := range want {
		if got := day.Ordinal(); got != ord {
			t.Errorf("%s.Ordinal() = %d, want %d", day, got, ord)
		}
	}
	if DayOfWeek("someday").Ordinal() != -1 {
		t.Error("unknown day should have ordinal -1")
	}
}

func TestISOWeekday(t *testing.T) {
	// 2025-07-14 is a Monday.
	monday := time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 7; i++ {
		if got := ISOWeekday(monday.AddDate(0, 0, i)); got != i {
			t.Errorf("ISOWeekday(monday+%dd) = %d, want %d", i, got, i)
		}
	}
}

func TestScheduleContains(t *testing.T) {
	s := &Schedule{StartTime: "10:00", EndTime: "11:00"}

	cases := []struct {
		clock string
		want  bool
	}{
		{"09:59", false},
		{"10:00", true}, // start inclusive
		{"10:30", true},
		{"10:59", true},
		{"11:00", false}, // end exclusive
		{"12:00", false},
	}

	for _, c := range cases {
		clock, err := ParseClock(c.clock)
		if err != nil {
			t.Fatalf("ParseClock(%q): %v", c.clock, err)
		}
		if got := s.Contains(clock); got != c.want {
			t.Errorf("Contains(%s) = %v, want %v", c.clock, got, c.want)
		}
	}
}

func TestUserAge(t *testing.T) {
	now := time.Date(2025, 7, 16, 12, 0, 0, 0, time.UTC)

	birthday := time.Date(2000, 7, 16, 0, 0, 0, 0, time.UTC)
	u := &User{Birthday: &birthday}
	if got := u.Age(now); got != 25 {
		t.Errorf("age on the birthday itself = %d, want 25", got)
	}

	dayAfter := time.Date(2000, 7, 17, 0, 0, 0, 0, time.UTC)
	u = &User{Birthday: &dayAfter}
	if got := u.Age(now); got != 24 {
		t.Errorf("age the day before the birthday = %d, want 24", got)
	}

	if got := (&User{}).Age(now); got != -1 {
		t.Errorf("age without birthday = %d, want -1", got)
	}
}
