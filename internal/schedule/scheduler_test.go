package schedule_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"groupquiz/internal/schedule"
)

func TestAfter_Fires(t *testing.T) {
	s := schedule.New()

	fired := make(chan struct{})
	s.After(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
}

func TestAfter_Cancel(t *testing.T) {
	s := schedule.New()

	fired := make(chan struct{}, 1)
	cancel := s.After(20*time.Millisecond, func() { fired <- struct{}{} })
	cancel()

	select {
	case <-fired:
		t.Fatal("cancelled timer fired")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestNow(t *testing.T) {
	s := schedule.New()
	assert.WithinDuration(t, time.Now(), s.Now(), time.Second)
}
