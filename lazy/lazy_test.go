package lazy

import (
	"sync"
	"testing"
)

func TestCellReady(t *testing.T) {
	t.Parallel()

	c := NewReady(42)
	if c.Pending() {
		t.Fatal("expected a ready cell to report Pending() == false")
	}
	v, err := c.Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if v != 42 {
		t.Errorf("Get() = %d, want 42", v)
	}
}

func TestCellPendingComputesOnce(t *testing.T) {
	t.Parallel()

	var calls int
	var mu sync.Mutex
	c := NewPending(func() (int, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return 7, nil
	})
	if !c.Pending() {
		t.Fatal("expected a pending cell to report Pending() == true")
	}

	for i := 0; i < 5; i++ {
		v, err := c.Get()
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if v != 7 {
			t.Errorf("Get() = %d, want 7", v)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("generator called %d times, want 1", calls)
	}
	if c.Pending() {
		t.Error("expected cell to be resolved after Get()")
	}
}

func TestCellPropagatesError(t *testing.T) {
	t.Parallel()

	sentinel := cellError("boom")
	c := NewPending(func() (int, error) {
		return 0, sentinel
	})
	_, err := c.Get()
	if err != sentinel {
		t.Errorf("Get() error = %v, want %v", err, sentinel)
	}
	// Error results are cached too: Get must not retry the generator.
	_, err = c.Get()
	if err != sentinel {
		t.Errorf("second Get() error = %v, want %v", err, sentinel)
	}
}

func TestCellConcurrentGetNeverPublishesPartial(t *testing.T) {
	t.Parallel()

	c := NewPending(func() (int, error) {
		return 99, nil
	})
	var wg sync.WaitGroup
	results := make([]int, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.Get()
			if err != nil {
				t.Errorf("Get() error = %v", err)
				return
			}
			results[i] = v
		}(i)
	}
	wg.Wait()
	for i, v := range results {
		if v != 99 {
			t.Errorf("results[%d] = %d, want 99", i, v)
		}
	}
}

func TestCellReset(t *testing.T) {
	t.Parallel()

	c := NewReady(1)
	c.Reset(func() (int, error) { return 2, nil })
	if !c.Pending() {
		t.Fatal("expected cell to be pending after Reset")
	}
	v, err := c.Get()
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if v != 2 {
		t.Errorf("Get() = %d, want 2", v)
	}
}
