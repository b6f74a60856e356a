package adc

import (
	"errors"
	"math"
	"testing"

	"periph-go/errcode"
	"periph-go/services/periph/internal/core"
)

type fakeTransport struct {
	bufs    map[core.UnitID][]uint16
	stopped []core.UnitID
	fail    error
}

func (f *fakeTransport) Start(u core.UnitID, buf []uint16) error {
	if f.fail != nil {
		return f.fail
	}
	if f.bufs == nil {
		f.bufs = map[core.UnitID][]uint16{}
	}
	f.bufs[u] = buf
	return nil
}

func (f *fakeTransport) Stop(u core.UnitID) error { f.stopped = append(f.stopped, u); return nil }

func TestConversionRoutesToOwner(t *testing.T) {
	r := NewRouter()
	tr := &fakeTransport{}
	a1 := New(r, 1, tr, Config{})
	a2 := New(r, 2, tr, Config{Channels: 2})
	for _, a := range []*ADC{a1, a2} {
		if err := a.Init(); err != nil {
			t.Fatal(err)
		}
	}
	var n1, n2 int
	_, _ = a1.OnComplete(func() { n1++ })
	cancel, _ := a2.OnComplete(func() { n2++ })

	r.ConversionComplete(2)
	r.ConversionComplete(2)
	r.ConversionComplete(9) // unknown unit: ignored
	if n1 != 0 || n2 != 2 {
		t.Fatalf("n1=%d n2=%d", n1, n2)
	}
	cancel()
	r.ConversionComplete(2)
	if n2 != 2 {
		t.Fatal("cancelled callback ran")
	}
	if len(tr.bufs[1]) != DefaultChannels || len(tr.bufs[2]) != 2 {
		t.Fatalf("buffer sizes %d %d", len(tr.bufs[1]), len(tr.bufs[2]))
	}
}

func TestCapacityThree(t *testing.T) {
	r := NewRouter()
	tr := &fakeTransport{}
	for u := core.UnitID(1); u <= Capacity; u++ {
		if err := New(r, u, tr, Config{}).Init(); err != nil {
			t.Fatal(err)
		}
	}
	if err := New(r, 4, tr, Config{}).Init(); !errors.Is(err, errcode.RegistryFull) {
		t.Fatalf("err=%v", err)
	}
}

func TestVoltsAndDeinit(t *testing.T) {
	r := NewRouter()
	tr := &fakeTransport{}
	a := New(r, 1, tr, Config{Channels: 1})
	_ = a.Init()
	tr.bufs[1][0] = 4095

	v, err := a.Volts(0)
	if err != nil || math.Abs(float64(v)-3.3) > 1e-4 {
		t.Fatalf("volts=%v err=%v", v, err)
	}
	if _, err := a.Value(1); !errors.Is(err, errcode.InvalidParams) {
		t.Fatalf("err=%v", err)
	}

	if err := a.Deinit(); err != nil {
		t.Fatal(err)
	}
	if r.Len() != 0 || len(tr.stopped) != 1 {
		t.Fatalf("len=%d stopped=%v", r.Len(), tr.stopped)
	}
}

func TestInitFailureUnregisters(t *testing.T) {
	r := NewRouter()
	a := New(r, 1, &fakeTransport{fail: errcode.Busy}, Config{})
	if err := a.Init(); !errors.Is(err, errcode.Busy) || r.Len() != 0 {
		t.Fatalf("err=%v len=%d", err, r.Len())
	}
}
