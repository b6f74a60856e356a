//go:build !rp2040

package periph

import (
	"context"
	"testing"
	"time"

	"periph-go/bus"
	"periph-go/services/periph/internal/can"
	"periph-go/services/periph/internal/platform"
	"periph-go/types"
	"periph-go/x/timex"
)

// ---- helpers ----

type rig struct {
	t     *testing.T
	bus   *bus.Bus
	conn  *bus.Connection
	board *platform.SimBoard
	clock *timex.Manual
	svc   *Service
	state *bus.Subscription
	stop  context.CancelFunc
	done  chan struct{}
}

func newRig(t *testing.T) *rig {
	t.Helper()
	b := bus.NewBus(32)
	r := &rig{
		t:     t,
		bus:   b,
		conn:  b.NewConnection("test"),
		board: platform.NewSimBoard(),
		clock: &timex.Manual{},
		done:  make(chan struct{}),
	}
	r.svc = New(b.NewConnection("periph"), r.board, r.clock)
	r.state = r.conn.Subscribe(topicState)

	ctx, cancel := context.WithCancel(context.Background())
	r.stop = cancel
	go func() {
		defer close(r.done)
		r.svc.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-r.done
	})
	return r
}

func (r *rig) configure(cfg types.PeriphConfig) {
	r.t.Helper()
	r.conn.Publish(r.conn.NewMessage(topicConfig, cfg, true))
	r.waitState("ready")
}

func (r *rig) waitState(level string) types.PeriphState {
	r.t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case m := <-r.state.Channel():
			st, ok := m.Payload.(types.PeriphState)
			if !ok {
				r.t.Fatalf("state payload type %T", m.Payload)
			}
			if st.Level == level {
				return st
			}
		case <-deadline:
			r.t.Fatalf("timeout waiting for state %q", level)
		}
	}
}

func (r *rig) events(k platform.Kind, name string) *bus.Subscription {
	return r.conn.Subscribe(eventTopic(k, name))
}

func (r *rig) request(k platform.Kind, name, method string, payload any) any {
	r.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg := r.conn.NewMessage(bus.T(tokPeriph, string(k), name, tokControl, method), payload, false)
	reply, err := r.conn.RequestWait(ctx, msg)
	if err != nil {
		r.t.Fatalf("request %s/%s/%s: %v", k, name, method, err)
	}
	return reply.Payload
}

func recv[T any](t *testing.T, sub *bus.Subscription) T {
	t.Helper()
	select {
	case m := <-sub.Channel():
		v, ok := m.Payload.(T)
		if !ok {
			t.Fatalf("payload type %T", m.Payload)
		}
		return v
	case <-time.After(time.Second):
		var zero T
		t.Fatalf("timeout waiting for %T", zero)
		return zero
	}
}

func expectNone(t *testing.T, sub *bus.Subscription) {
	t.Helper()
	select {
	case m := <-sub.Channel():
		t.Fatalf("unexpected message: %#v", m.Payload)
	case <-time.After(30 * time.Millisecond):
	}
}

func wantErr(t *testing.T, p any, code string) {
	t.Helper()
	e, ok := p.(types.ErrorReply)
	if !ok || e.OK || e.Error != code {
		t.Fatalf("reply = %#v, want error %q", p, code)
	}
}

func wantOK(t *testing.T, p any) {
	t.Helper()
	if r, ok := p.(types.OKReply); !ok || !r.OK {
		t.Fatalf("reply = %#v, want ok", p)
	}
}

// ---- tests ----

func TestLifecycle_IdleReadyStopped(t *testing.T) {
	r := newRig(t)
	if st := r.waitState("idle"); st.Board != "sim" {
		t.Fatalf("board = %q", st.Board)
	}

	r.conn.Publish(r.conn.NewMessage(topicConfig, types.PeriphConfig{
		UART: []types.UARTConfig{{Name: "uart0"}},
		PWM:  []types.PWMConfig{{Name: "tim1", Period: 10, Pulse: 20}},
	}, true))
	st := r.waitState("ready")
	if st.Units["uart/uart0"] != "ok" {
		t.Fatalf("uart0 status = %q", st.Units["uart/uart0"])
	}
	if st.Units["pwm/tim1"] != "invalid_params" {
		t.Fatalf("pwm status = %q, want invalid_params", st.Units["pwm/tim1"])
	}
	if !r.board.Started(platform.KindUART, "uart0") {
		t.Fatal("uart0 transport not started")
	}

	r.stop()
	r.waitState("stopped")
	<-r.done
	if r.board.Started(platform.KindUART, "uart0") {
		t.Fatal("uart0 still running after stop")
	}
}

func TestEdgeEventsAreDebounced(t *testing.T) {
	r := newRig(t)
	r.configure(types.PeriphConfig{EXTI: types.EXTIConfig{
		Watchers: []types.WatcherConfig{{Name: "btn", Mask: 0x1}},
	}})
	sub := r.events(platform.KindEXTI, "btn")

	r.board.FireEXTI(0x1)
	if ev := recv[types.EdgeEvent](t, sub); ev.Mask != 0x1 || ev.Count != 1 {
		t.Fatalf("first edge = %+v", ev)
	}

	r.clock.Set(100 * time.Millisecond)
	r.board.FireEXTI(0x1)
	expectNone(t, sub)

	r.clock.Set(300 * time.Millisecond)
	r.board.FireEXTI(0x1)
	if ev := recv[types.EdgeEvent](t, sub); ev.Count != 2 || ev.TS != int64(300*time.Millisecond) {
		t.Fatalf("second edge = %+v", ev)
	}
}

func TestUARTRxAndSingleFlightTx(t *testing.T) {
	r := newRig(t)
	r.configure(types.PeriphConfig{UART: []types.UARTConfig{{Name: "uart0"}}})
	sub := r.events(platform.KindUART, "uart0")

	r.board.FireUARTRx("uart0", []byte("hello"))
	if ev := recv[types.RxEvent](t, sub); ev.Data != "hello" {
		t.Fatalf("rx = %+v", ev)
	}

	wantOK(t, r.request(platform.KindUART, "uart0", ctrlTx, types.TxRequest{Data: "abc"}))
	wantErr(t, r.request(platform.KindUART, "uart0", ctrlTx, types.TxRequest{Data: "de"}), "busy_queued")
	if got := r.board.Sent(platform.KindUART, "uart0"); len(got) != 1 || got[0] != "abc" {
		t.Fatalf("sent = %v", got)
	}

	r.board.FireUARTTxDone("uart0")
	if ev := recv[types.TxDoneEvent](t, sub); ev.Len != 3 {
		t.Fatalf("tx done = %+v", ev)
	}
	if got := r.board.Sent(platform.KindUART, "uart0"); len(got) != 2 || got[1] != "de" {
		t.Fatalf("queued transmit not started: %v", got)
	}
}

func TestStateReportsReceiveErrorsAndRejects(t *testing.T) {
	r := newRig(t)
	r.configure(types.PeriphConfig{
		StateIntervalMs: 100,
		CAN:             []types.CANConfig{{Name: "can1"}},
		UART:            []types.UARTConfig{{Name: "uart0"}},
	})

	// Rx-pending with nothing in the mailbox: the fetch fails.
	u, _ := r.board.Unit(platform.KindCAN, "can1")
	r.svc.Routers().CAN.RxPending(u)

	wantOK(t, r.request(platform.KindUART, "uart0", ctrlTx, types.TxRequest{Data: "a"}))
	wantErr(t, r.request(platform.KindUART, "uart0", ctrlTx, types.TxRequest{Data: "b"}), "busy_queued")
	r.board.RejectNext(platform.KindUART, "uart0", 1)
	r.board.FireUARTTxDone("uart0")

	deadline := time.Now().Add(2 * time.Second)
	for {
		st := r.waitState("ready")
		if st.RxErrors == 1 && st.TxRejected == 1 && st.TxPending == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("state = %+v", st)
		}
	}
}

func TestBlockingTxWaitsForCompletion(t *testing.T) {
	r := newRig(t)
	r.configure(types.PeriphConfig{USB: []types.USBConfig{{Name: "cdc0"}}})

	wantOK(t, r.request(platform.KindUSB, "cdc0", ctrlTx, types.TxRequest{Data: "first"}))

	replies := make(chan any, 1)
	go func() {
		replies <- r.request(platform.KindUSB, "cdc0", ctrlTx, types.TxRequest{Data: "second", Blocking: true})
	}()
	select {
	case p := <-replies:
		t.Fatalf("blocking tx returned before completion: %#v", p)
	case <-time.After(30 * time.Millisecond):
	}

	r.board.FireUSBTxDone("cdc0")
	select {
	case p := <-replies:
		wantOK(t, p)
	case <-time.After(time.Second):
		t.Fatal("blocking tx never returned")
	}

	wantErr(t, r.request(platform.KindUSB, "cdc0", ctrlTx,
		types.TxRequest{Data: "third", Blocking: true, TimeoutMs: 20}), "timeout")
}

func TestControlErrors(t *testing.T) {
	r := newRig(t)
	r.waitState("idle")
	wantErr(t, r.request(platform.KindUART, "uart0", ctrlTx, types.TxRequest{Data: "x"}), "not_ready")

	r.configure(types.PeriphConfig{UART: []types.UARTConfig{{Name: "uart0"}}})
	wantErr(t, r.request(platform.KindUART, "nope", ctrlTx, types.TxRequest{Data: "x"}), "unknown_unit")
	wantErr(t, r.request(platform.KindUART, "uart0", "reboot", nil), "invalid_topic")
	wantErr(t, r.request(platform.KindUART, "uart0", ctrlTx, "{not json"), "invalid_params")
	wantErr(t, r.request(platform.KindADC, "adc0", ctrlTx, types.TxRequest{}), "unsupported")
}

func TestI2CWriteReadAndAsync(t *testing.T) {
	r := newRig(t)
	r.board.HostI2C("i2c0").AddDevice(0x40)
	r.configure(types.PeriphConfig{I2C: []types.I2CConfig{{Name: "i2c0"}}})
	sub := r.events(platform.KindI2C, "i2c0")

	wantOK(t, r.request(platform.KindI2C, "i2c0", ctrlTx,
		types.TxRequest{Data: "\x01\x02", Addr: 0x40, Reg: 0x10, Blocking: true}))

	p := r.request(platform.KindI2C, "i2c0", ctrlRead, types.ReadRequest{Addr: 0x40, Reg: 0x10, Len: 2})
	rd, ok := p.(types.ReadReply)
	if !ok || !rd.OK || len(rd.Data) != 2 || rd.Data[0] != 1 || rd.Data[1] != 2 {
		t.Fatalf("read = %#v", p)
	}

	wantOK(t, r.request(platform.KindI2C, "i2c0", ctrlTx, types.TxRequest{Data: "\x07", Addr: 0x40, Reg: 0x20}))
	r.board.FireI2CTxDone("i2c0")
	recv[types.TxDoneEvent](t, sub)
}

func TestCANFilteredReceive(t *testing.T) {
	r := newRig(t)
	r.configure(types.PeriphConfig{CAN: []types.CANConfig{
		{Name: "can1", TxID: 0x100, FilterID: 0x200, FilterMask: 0x700},
	}})
	sub := r.events(platform.KindCAN, "can1")

	if r.board.FireCANRx("can1", can.Frame{ID: 0x300, DLC: 1}) {
		t.Fatal("filter should reject 0x300")
	}
	if !r.board.FireCANRx("can1", can.Frame{ID: 0x201, DLC: 2, Data: [8]byte{0xAA, 0xBB}}) {
		t.Fatal("filter should accept 0x201")
	}
	ev := recv[types.CANEvent](t, sub)
	if ev.ID != 0x201 || len(ev.Data) != 2 || ev.Data[1] != 0xBB {
		t.Fatalf("can event = %+v", ev)
	}

	wantOK(t, r.request(platform.KindCAN, "can1", ctrlTx, types.TxRequest{Data: "hi"}))
}

func TestADCCaptureEncoderPWMEvents(t *testing.T) {
	r := newRig(t)
	r.configure(types.PeriphConfig{
		ADC:     []types.ADCConfig{{Name: "adc0", Channels: 2}},
		Capture: []types.CaptureConfig{{Name: "tim2", Channel: 1}},
		Encoder: []types.EncoderConfig{{Name: "tim3"}},
		PWM:     []types.PWMConfig{{Name: "tim4", Channel: 2, Period: 100, Pulse: 50}},
	})

	adcSub := r.events(platform.KindADC, "adc0")
	r.board.FireADC("adc0", 4095, 0)
	conv := recv[types.ConversionEvent](t, adcSub)
	if len(conv.Raw) != 2 || conv.Raw[0] != 4095 || conv.Volts[0] < 3.29 || conv.Volts[1] != 0 {
		t.Fatalf("conversion = %+v", conv)
	}

	capSub := r.events(platform.KindCapture, "tim2")
	r.board.FireCapture("tim2", 1, 1234)
	if ev := recv[types.CaptureEvent](t, capSub); ev.Value != 1234 || ev.Channel != 1 {
		t.Fatalf("capture = %+v", ev)
	}

	encSub := r.events(platform.KindEncoder, "tim3")
	r.board.FireEncoder("tim3", 4)
	if ev := recv[types.EncoderEvent](t, encSub); ev.Step != 1 || ev.Value != 1 {
		t.Fatalf("encoder = %+v", ev)
	}

	pwmSub := r.events(platform.KindPWM, "tim4")
	r.board.FirePWMHalf("tim4", 2)
	r.board.FirePWMFinished("tim4", 2)
	if ev := recv[types.PWMEvent](t, pwmSub); ev.Phase != "half" || ev.Channel != 2 {
		t.Fatalf("pwm half = %+v", ev)
	}
	if ev := recv[types.PWMEvent](t, pwmSub); ev.Phase != "finished" {
		t.Fatalf("pwm finished = %+v", ev)
	}
}

func TestI2SPeaksAndLoopback(t *testing.T) {
	r := newRig(t)
	r.configure(types.PeriphConfig{I2S: []types.I2SConfig{
		{Name: "i2s0", SamplesPerHalf: 4, SampleRate: 8000, Loopback: true},
	}})
	sub := r.events(platform.KindI2S, "i2s0")

	r.board.FillI2SRx("i2s0", 0, []int16{100, -200, 5, 5, -300, 7, 0, 0})
	r.board.FireI2SHalf("i2s0")

	ev := recv[types.AudioEvent](t, sub)
	if ev.Frames != 4 || ev.PeakL != 300 || ev.PeakR != 200 {
		t.Fatalf("audio = %+v", ev)
	}

	// Played back into the half the hardware is no longer reading.
	if tx := r.board.I2STx("i2s0"); len(tx) != 16 || tx[8] != 100 || tx[9] != -200 || tx[12] != -300 {
		t.Fatalf("loopback tx = %v", tx)
	}
}

func TestEventQueueOverflowCounted(t *testing.T) {
	r := newRig(t)
	r.configure(types.PeriphConfig{
		EventQueue: 4,
		Capture:    []types.CaptureConfig{{Name: "tim2", Channel: 1}},
	})
	// Interrupts arrive faster than the service loop can publish them.
	for i := 0; i < 64; i++ {
		r.board.FireCapture("tim2", 1, uint32(i))
	}
	deadline := time.Now().Add(time.Second)
	for r.svc.EventDrops() == 0 && time.Now().Before(deadline) {
		for i := 0; i < 64; i++ {
			r.board.FireCapture("tim2", 1, uint32(i))
		}
	}
	if r.svc.EventDrops() == 0 {
		t.Fatal("expected dropped events with a 4-slot queue")
	}
}
