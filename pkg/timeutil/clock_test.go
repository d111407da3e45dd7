package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMockClockAfter(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	ch := c.After(30 * time.Second)
	c.Advance(29 * time.Second)
	select {
	case <-ch:
		t.Fatal("fired before its deadline")
	default:
	}

	c.Advance(time.Second)
	select {
	case got := <-ch:
		assert.Equal(t, start.Add(30*time.Second), got)
	default:
		t.Fatal("did not fire at its deadline")
	}
	assert.Equal(t, start.Add(30*time.Second), c.Now())
}

func TestMockClockTicker(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	tk := c.NewTicker(3 * time.Second)

	fired := 0
	for i := 0; i < 9; i++ {
		c.Advance(time.Second)
		select {
		case <-tk.C():
			fired++
		default:
		}
	}
	assert.Equal(t, 3, fired)

	tk.Stop()
	c.Advance(10 * time.Second)
	select {
	case <-tk.C():
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestMockClockBlockUntil(t *testing.T) {
	c := NewMockClock(time.Unix(0, 0))
	done := make(chan struct{})
	go func() {
		<-c.After(time.Minute)
		close(done)
	}()

	c.BlockUntil(1)
	c.Advance(time.Minute)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("waiter was not released")
	}
}

func TestRealClock(t *testing.T) {
	var c Clock = RealClock{}
	before := time.Now()
	assert.False(t, c.Now().Before(before))

	tk := c.NewTicker(time.Millisecond)
	defer tk.Stop()
	select {
	case <-tk.C():
	case <-time.After(5 * time.Second):
		t.Fatal("ticker did not fire")
	}
}
