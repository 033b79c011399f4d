package availability

import (
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	c, err := ParseClock("09:30")
	if err != nil {
		t.Fatalf("ParseClock: %v", err)
	}
	if c != NewClock(9, 30, 0) {
		t.Fatalf("expected 09:30, got %s", c)
	}
	c, err = ParseClock("17:00:15")
	if err != nil {
		t.Fatalf("ParseClock: %v", err)
	}
	if c.String() != "17:00:15" {
		t.Fatalf("expected 17:00:15, got %s", c)
	}
	if _, err := ParseClock("25:00"); err == nil {
		t.Fatal("expected error for 25:00")
	}
}

func TestClockOf_KeepsSubSecondPrecision(t *testing.T) {
	ts := time.Date(2024, 1, 1, 17, 0, 0, 500, time.UTC)
	if ClockOf(ts) <= NewClock(17, 0, 0) {
		t.Fatal("expected 17:00:00.0000005 to be after 17:00")
	}
	if ClockFromMinutes(540) != NewClock(9, 0, 0) {
		t.Fatal("expected 540 minutes to be 09:00")
	}
	if NewClock(13, 45, 59).Minutes() != 13*60+45 {
		t.Fatal("Minutes should truncate seconds")
	}
}

func TestClockOn_LocalizesWallClock(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	if err != nil {
		t.Skipf("tzdata unavailable: %v", err)
	}
	day := time.Date(2024, 1, 3, 23, 0, 0, 0, tokyo)
	got := NewClock(9, 0, 0).On(day)

	if got.Location() != tokyo {
		t.Fatalf("expected Asia/Tokyo location, got %s", got.Location())
	}
	if got.Hour() != 9 || got.Day() != 3 {
		t.Fatalf("expected Jan 3 09:00 local, got %s", got)
	}
	if want := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got.UTC())
	}
}

func TestClockOnDate_RollsOverMonthEnd(t *testing.T) {
	got := NewClock(8, 15, 0).OnDate(2024, time.January, 31+2, time.UTC)
	if got.Month() != time.February || got.Day() != 2 {
		t.Fatalf("expected Feb 2, got %s", got)
	}
}
