package clock_test

import (
	"testing"
	"time"

	"github.com/artpar/svcroute/adapters/clock"
)

func TestSystem_NowIsUTC(t *testing.T) {
	got := clock.System{}.Now()
	if got.Location() != time.UTC {
		t.Errorf("location = %v, want UTC", got.Location())
	}
	if time.Since(got) > time.Minute {
		t.Errorf("Now() = %v is far in the past", got)
	}
}

func TestStepping_Advances(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := clock.NewStepping(start, time.Second)

	if got := c.Now(); !got.Equal(start) {
		t.Errorf("first Now() = %v, want %v", got, start)
	}
	if got := c.Now(); !got.Equal(start.Add(time.Second)) {
		t.Errorf("second Now() = %v, want %v", got, start.Add(time.Second))
	}
	if got := c.Peek(); !got.Equal(start.Add(2 * time.Second)) {
		t.Errorf("Peek() = %v, want %v", got, start.Add(2*time.Second))
	}
}

func TestStepping_Frozen(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	c := clock.NewStepping(start, 0)

	for i := 0; i < 3; i++ {
		if got := c.Now(); !got.Equal(start) {
			t.Fatalf("Now() = %v, want %v", got, start)
		}
	}
}
