package device

import (
	"errors"
	"sync"
	"testing"
)

func TestRegistry_ExclusiveCheckout(t *testing.T) {
	r := NewRegistry()

	lease, err := r.Checkout("cam0", "src0")
	if err != nil {
		t.Fatalf("first checkout failed: %v", err)
	}

	if _, err := r.Checkout("cam0", "src1"); !errors.Is(err, ErrBusy) {
		t.Fatalf("second checkout error = %v, want ErrBusy", err)
	}

	// Other devices are independent
	other, err := r.Checkout("cam1", "src1")
	if err != nil {
		t.Fatalf("checkout of other device failed: %v", err)
	}
	other.Release()

	lease.Release()
	lease.Release() // idempotent

	again, err := r.Checkout("cam0", "src1")
	if err != nil {
		t.Fatalf("checkout after release failed: %v", err)
	}
	defer again.Release()

	slots := r.Slots()
	if len(slots) != 2 {
		t.Fatalf("len(Slots) = %d, want 2", len(slots))
	}
	if slots[0].ID != "cam0" || slots[0].State != StateCheckedOut || slots[0].Owner != "src1" {
		t.Errorf("unexpected slot: %+v", slots[0])
	}
	if slots[0].Checkouts != 2 {
		t.Errorf("Checkouts = %d, want 2", slots[0].Checkouts)
	}
}

func TestRegistry_ConcurrentCheckout(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Checkout("cam0", "racer"); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Errorf("wins = %d, want exactly 1", wins)
	}
}
