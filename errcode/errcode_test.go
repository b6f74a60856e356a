package errcode

import (
	"errors"
	"testing"
)

func TestCodesAreStableStrings(t *testing.T) {
	cases := map[string]Code{
		"ok":               OK,
		"busy":             Busy,
		"busy_queued":      BusyQueued,
		"queue_full":       QueueFull,
		"registry_full":    RegistryFull,
		"timeout":          Timeout,
		"unexpected_state": UnexpectedState,
		"not_ready":        NotReady,
		"unknown_unit":     UnknownUnit,
		"unsupported":      Unsupported,
	}
	for want, c := range cases {
		if c.Error() != want {
			t.Fatalf("code %q mismatch: got %q", want, c.Error())
		}
	}
}

func TestOf(t *testing.T) {
	if Of(nil) != OK {
		t.Fatalf("Of(nil) != OK")
	}
	if Of(QueueFull) != QueueFull {
		t.Fatalf("Of(QueueFull) mismatch")
	}
	if got := Of(&E{C: Timeout, Op: "read"}); got != Timeout {
		t.Fatalf("Of(*E) = %q", got)
	}
	if Of(errors.New("boom")) != Error {
		t.Fatalf("foreign error should map to Error")
	}
}

func TestWrapKeepsCodeAndCause(t *testing.T) {
	err := Wrap("uart0.transmit", QueueFull)
	if Of(err) != QueueFull {
		t.Fatalf("wrapped code = %q", Of(err))
	}
	if !errors.Is(err, QueueFull) {
		t.Fatal("errors.Is should see through E")
	}
	if err.Error() != "uart0.transmit: queue_full" {
		t.Fatalf("unexpected text %q", err.Error())
	}
	if Wrap("x", nil) != nil {
		t.Fatal("Wrap(nil) should be nil")
	}
}

func TestRecoverable(t *testing.T) {
	for _, c := range []Code{BusyQueued, QueueFull, Timeout, UnexpectedState} {
		if !Recoverable(c) {
			t.Fatalf("%q should be recoverable", c)
		}
	}
	if Recoverable(RegistryFull) || Recoverable(nil) {
		t.Fatal("registry_full and nil are not retry conditions")
	}
}
