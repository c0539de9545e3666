package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFakeClock_StartsAtZero(t *testing.T) {
	clock := NewFakeClock()
	assert.Equal(t, time.Duration(0), clock.Now())
}

func TestFakeClock_Advance(t *testing.T) {
	clock := NewFakeClock()

	clock.Advance(250 * time.Millisecond)
	clock.Advance(time.Second)

	assert.Equal(t, 1250*time.Millisecond, clock.Now())
}

func TestFakeClock_NegativeAdvanceIgnored(t *testing.T) {
	clock := NewFakeClock()
	clock.Advance(time.Second)
	clock.Advance(-500 * time.Millisecond)

	assert.Equal(t, time.Second, clock.Now())
}

func TestFakeClock_Reset(t *testing.T) {
	clock := NewFakeClock()
	clock.Advance(time.Minute)
	clock.Reset()

	assert.Equal(t, time.Duration(0), clock.Now())
}

func TestFakeClock_ThreadSafe(t *testing.T) {
	clock := NewFakeClock()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				clock.Advance(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, time.Second, clock.Now())
}
