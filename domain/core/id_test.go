package core

import (
	"sync"
	"testing"
)

// TestNextOutcomeIDMonotonic tests that sequential IDs strictly increase
func TestNextOutcomeIDMonotonic(t *testing.T) {
	prev := NextOutcomeID()
	for i := 0; i < 1000; i++ {
		id := NextOutcomeID()
		if id <= prev {
			t.Fatalf("Expected strictly increasing IDs, got %d after %d", id, prev)
		}
		prev = id
	}
}

// TestNextOutcomeIDConcurrent tests uniqueness under concurrent construction
func TestNextOutcomeIDConcurrent(t *testing.T) {
	const workers = 8
	const perWorker = 2000

	var mu sync.Mutex
	seen := make(map[OutcomeID]bool, workers*perWorker)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]OutcomeID, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, NextOutcomeID())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range local {
				if seen[id] {
					t.Errorf("Generated duplicate ID: %d", id)
				}
				seen[id] = true
			}
		}()
	}
	wg.Wait()

	if len(seen) != workers*perWorker {
		t.Errorf("Expected %d unique IDs, got %d", workers*perWorker, len(seen))
	}
}

// TestNewIDUniqueness tests that NewID generates unique identifiers
func TestNewIDUniqueness(t *testing.T) {
	const numIDs = 10000

	ids := make(map[ID]bool, numIDs)
	for i := 0; i < numIDs; i++ {
		id := NewID()
		if id.IsEmpty() {
			t.Errorf("Generated empty ID at iteration %d", i)
		}
		if ids[id] {
			t.Errorf("Generated duplicate ID: %s", id)
		}
		ids[id] = true
	}
}
