package core

import (
	"errors"
	"testing"

	"periph-go/errcode"
)

func TestCallbacks_AddCancel(t *testing.T) {
	cbs := NewCallbacks[func(int)]()
	var sum int
	cancelA, err := cbs.Add(func(v int) { sum += v })
	if err != nil {
		t.Fatal(err)
	}
	if _, err := cbs.Add(func(v int) { sum += 10 * v }); err != nil {
		t.Fatal(err)
	}

	cbs.Each(func(fn func(int)) { fn(1) })
	if sum != 11 {
		t.Fatalf("sum=%d want 11", sum)
	}

	cancelA()
	cancelA() // idempotent
	sum = 0
	cbs.Each(func(fn func(int)) { fn(1) })
	if sum != 10 || cbs.Len() != 1 {
		t.Fatalf("sum=%d len=%d", sum, cbs.Len())
	}
}

func TestCallbacks_Bounded(t *testing.T) {
	cbs := NewCallbacks[func()]()
	for i := 0; i < CallbackListSize; i++ {
		if _, err := cbs.Add(func() {}); err != nil {
			t.Fatalf("add %d: %v", i, err)
		}
	}
	cancel, err := cbs.Add(func() {})
	if !errors.Is(err, errcode.RegistryFull) {
		t.Fatalf("err=%v want registry_full", err)
	}
	cancel() // no-op, must not panic
	if cbs.Len() != CallbackListSize {
		t.Fatalf("len=%d", cbs.Len())
	}
}
