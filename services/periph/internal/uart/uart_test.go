package uart

import (
	"context"
	"errors"
	"testing"
	"time"

	"periph-go/errcode"
	"periph-go/services/periph/internal/core"
	"periph-go/services/periph/internal/txq"
)

type fakeUART struct {
	armed   int
	rxBuf   []byte
	sent    []string
	stopped int
	failRx  bool
}

func (f *fakeUART) StartReceive(_ core.UnitID, buf []byte) error {
	if f.failRx {
		return errcode.Busy
	}
	f.armed++
	f.rxBuf = buf
	return nil
}

func (f *fakeUART) Send(_ core.UnitID, buf []byte) error {
	f.sent = append(f.sent, string(buf))
	return nil
}

func (f *fakeUART) Stop(core.UnitID) error { f.stopped++; return nil }

func setup(t *testing.T) (*Router, *UART, *fakeUART) {
	t.Helper()
	r := NewRouter()
	tr := &fakeUART{}
	u := New(r, 0x40004400, tr, Config{RxBuffer: 16})
	if err := u.Init(); err != nil {
		t.Fatal(err)
	}
	return r, u, tr
}

func TestRxEventRunsCallbacksAndRearms(t *testing.T) {
	r, u, tr := setup(t)
	var got []string
	_, _ = u.OnReceive(func(b []byte) { got = append(got, string(b)) })
	_, _ = u.OnReceive(func(b []byte) { got = append(got, "2:"+string(b)) })

	copy(tr.rxBuf, "hello")
	r.RxEvent(0x40004400, 5)
	if len(got) != 2 || got[0] != "hello" || got[1] != "2:hello" {
		t.Fatalf("got=%v", got)
	}
	if tr.armed != 2 {
		t.Fatalf("armed=%d want 2", tr.armed)
	}

	r.RxEvent(0x40004400, 1000) // clamped to the buffer
	if len(got[2]) != 16 {
		t.Fatalf("len=%d", len(got[2]))
	}
	r.RxEvent(0x1, 3) // unknown unit
	if len(got) != 4 {
		t.Fatalf("got=%v", got)
	}
}

func TestRearmFailureCounted(t *testing.T) {
	r, u, tr := setup(t)
	tr.failRx = true
	r.RxEvent(u.Unit(), 1)
	if u.RearmErrors() != 1 {
		t.Fatalf("rearm errors=%d", u.RearmErrors())
	}
}

func TestTransmitQueueDrainsOnTxComplete(t *testing.T) {
	r, u, tr := setup(t)
	var done []string
	_, _ = u.OnTransmit(func(b []byte) { done = append(done, string(b)) })

	if err := u.Transmit([]byte("a")); err != nil {
		t.Fatal(err)
	}
	if err := u.Transmit([]byte("b")); !errors.Is(err, errcode.BusyQueued) {
		t.Fatalf("err=%v", err)
	}
	r.TxComplete(u.Unit())
	r.TxComplete(u.Unit())

	if len(tr.sent) != 2 || tr.sent[1] != "b" {
		t.Fatalf("sent=%v", tr.sent)
	}
	if len(done) != 2 || done[0] != "a" || done[1] != "b" {
		t.Fatalf("done=%v", done)
	}
	if u.Queue().State() != txq.Idle {
		t.Fatalf("state=%v", u.Queue().State())
	}
}

func TestTransmitBlocking(t *testing.T) {
	r, u, tr := setup(t)
	_ = u.Transmit([]byte("first"))
	go func() {
		time.Sleep(5 * time.Millisecond)
		r.TxComplete(u.Unit())
	}()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := u.TransmitBlocking(ctx, []byte("second")); err != nil {
		t.Fatal(err)
	}
	if len(tr.sent) != 2 {
		t.Fatalf("sent=%v", tr.sent)
	}
}

func TestDeinitStopsThenUnregisters(t *testing.T) {
	r, u, tr := setup(t)
	_ = u.Transmit([]byte("x"))
	_ = u.Transmit([]byte("y"))
	if err := u.Deinit(); err != nil {
		t.Fatal(err)
	}
	if tr.stopped != 1 || r.Len() != 0 || u.Queue().Pending() != 0 {
		t.Fatalf("stopped=%d len=%d pending=%d", tr.stopped, r.Len(), u.Queue().Pending())
	}
	r.TxComplete(u.Unit())
	if len(tr.sent) != 1 {
		t.Fatalf("late completion must be ignored, sent=%v", tr.sent)
	}
}
