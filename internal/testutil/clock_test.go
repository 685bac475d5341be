package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStepClock_StartsAtEpoch(t *testing.T) {
	clock := NewStepClock(time.Second)
	assert.Equal(t, Epoch, clock.Current())
}

func TestStepClock_NowAdvancesByStep(t *testing.T) {
	clock := NewStepClock(250 * time.Millisecond)

	first := clock.Now()
	second := clock.Now()

	assert.Equal(t, Epoch.Add(250*time.Millisecond), first)
	assert.Equal(t, 250*time.Millisecond, second.Sub(first))
	assert.Equal(t, second, clock.Current())
}

func TestStepClock_Set(t *testing.T) {
	clock := NewStepClock(time.Millisecond)
	at := time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC)

	clock.Set(at, 5001*time.Millisecond)

	assert.Equal(t, at.Add(5001*time.Millisecond), clock.Now())
}

func TestStepClock_ConcurrentAccess(t *testing.T) {
	clock := NewStepClock(time.Millisecond)

	const goroutines = 50
	const callsPer = 20

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < callsPer; j++ {
				clock.Now()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, Epoch.Add(goroutines*callsPer*time.Millisecond), clock.Current())
}
