package tracker

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripeIsStableAndBounded(t *testing.T) {
	for i := 0; i < 10000; i++ {
		city := fmt.Sprintf("city-%d", i)
		s := stripe(city)
		assert.Less(t, s, uint32(lockStripes))
		assert.Equal(t, s, stripe(city))
	}
}

func TestCityLocksSerialiseSameCity(t *testing.T) {
	var locks cityLocks
	var wg sync.WaitGroup
	counter := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locks.lock("mumbai")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, counter)
}

