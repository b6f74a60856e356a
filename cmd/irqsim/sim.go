//go:build !rp2040

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"periph-go/bus"
	"periph-go/services/periph"
	"periph-go/types"
	"periph-go/x/timex"
)

// printer serialises output from the bus monitor and the script runner.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *printer) message(m *bus.Message) {
	b, err := json.Marshal(m.Payload)
	if err != nil {
		b = []byte(fmt.Sprintf("%#v", m.Payload))
	}
	p.printf("%-32s %s\n", topicString(m.Topic), b)
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	fmt.Fprintf(p.w, format, args...)
	p.mu.Unlock()
}

func topicString(t bus.Topic) string {
	parts := make([]string, len(t))
	for i, tok := range t {
		parts[i] = fmt.Sprint(tok)
	}
	return strings.Join(parts, "/")
}

// sim executes script commands against a SimBoard. The clock only moves on
// sleep, so debounce behaviour is reproducible.
type sim struct {
	board  *periph.SimBoard
	clock  *timex.Manual
	conn   *bus.Connection
	out    *printer
	settle time.Duration
}

// monitor prints every periph message. It closes ready on the first ready
// state and returns after the stopped state or when ctx ends.
func (s *sim) monitor(ctx context.Context, ready chan<- struct{}) {
	sub := s.conn.Subscribe(bus.T("periph", "#"))
	defer s.conn.Unsubscribe(sub)
	signalled := false
	for {
		select {
		case <-ctx.Done():
			return
		case m := <-sub.Channel():
			s.out.message(m)
			st, ok := m.Payload.(types.PeriphState)
			if !ok {
				continue
			}
			switch {
			case st.Level == "ready" && !signalled:
				signalled = true
				close(ready)
			case st.Level == "stopped":
				return
			}
		}
	}
}

func (s *sim) exec(ctx context.Context, c command) error {
	var err error
	switch c.op {
	case "exti":
		var m uint64
		if m, err = c.uint(0, 32); err == nil {
			s.board.FireEXTI(uint32(m))
		}
	case "sleep":
		var d time.Duration
		if d, err = c.duration(0); err == nil {
			s.clock.Advance(d)
		}
	case "wait":
		var d time.Duration
		if d, err = c.duration(0); err == nil {
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	case "uart-rx":
		s.board.FireUARTRx(c.args[0], []byte(strings.Join(c.args[1:], " ")))
	case "usb-rx":
		s.board.FireUSBRx(c.args[0], []byte(strings.Join(c.args[1:], " ")))
	case "tx-done":
		s.board.FireUARTTxDone(c.args[0])
	case "usb-tx-done":
		s.board.FireUSBTxDone(c.args[0])
	case "i2c-tx-done":
		s.board.FireI2CTxDone(c.args[0])
	case "adc":
		samples := make([]uint16, 0, len(c.args)-1)
		for i := 1; i < len(c.args) && err == nil; i++ {
			var v uint64
			if v, err = c.uint(i, 16); err == nil {
				samples = append(samples, uint16(v))
			}
		}
		if err == nil {
			s.board.FireADC(c.args[0], samples...)
		}
	case "can-rx":
		err = s.canRx(c)
	case "i2s-fill":
		var off uint64
		var samples []int16
		if off, err = c.uint(1, 16); err == nil {
			if samples, err = c.ints16(2); err == nil {
				s.board.FillI2SRx(c.args[0], int(off), samples)
			}
		}
	case "i2s-half":
		s.board.FireI2SHalf(c.args[0])
	case "i2s-full":
		s.board.FireI2SFull(c.args[0])
	case "capture":
		var ch, v uint64
		if ch, err = c.uint(1, 8); err == nil {
			if v, err = c.uint(2, 32); err == nil {
				s.board.FireCapture(c.args[0], periph.TimerChannel(ch), uint32(v))
			}
		}
	case "encoder":
		var v uint64
		if v, err = c.uint(1, 16); err == nil {
			s.board.FireEncoder(c.args[0], uint16(v))
		}
	case "pwm-half", "pwm-done":
		var ch uint64
		if ch, err = c.uint(1, 8); err == nil {
			if c.op == "pwm-half" {
				s.board.FirePWMHalf(c.args[0], periph.TimerChannel(ch))
			} else {
				s.board.FirePWMFinished(c.args[0], periph.TimerChannel(ch))
			}
		}
	case "tx":
		err = s.tx(ctx, c)
	case "state":
		st, ok := s.lastState()
		if ok {
			s.out.message(st)
		}
	}
	if err != nil {
		return err
	}
	// Let the service publish what the interrupt produced.
	time.Sleep(s.settle)
	return nil
}

func (s *sim) canRx(c command) error {
	id, err := c.uint(1, 29)
	if err != nil {
		return err
	}
	f := periph.CANFrame{ID: uint32(id), Extended: id > 0x7FF}
	for i := 2; i < len(c.args) && int(f.DLC) < len(f.Data); i++ {
		v, err := c.uint(i, 8)
		if err != nil {
			return err
		}
		f.Data[f.DLC] = byte(v)
		f.DLC++
	}
	if !s.board.FireCANRx(c.args[0], f) {
		s.out.printf("%-32s filtered id=0x%x\n", "sim/can/"+c.args[0], id)
	}
	return nil
}

// tx sends a control request and prints the reply.
func (s *sim) tx(ctx context.Context, c command) error {
	req := types.TxRequest{Data: c.args[2]}
	rctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	msg := s.conn.NewMessage(bus.T("periph", c.args[0], c.args[1], "control", "tx"), req, false)
	reply, err := s.conn.RequestWait(rctx, msg)
	if err != nil {
		return fmt.Errorf("line %d: tx: %w", c.line, err)
	}
	s.out.message(reply)
	return nil
}

func (s *sim) lastState() (*bus.Message, bool) {
	sub := s.conn.Subscribe(bus.T("periph", "state"))
	defer s.conn.Unsubscribe(sub)
	select {
	case m := <-sub.Channel():
		return m, true
	case <-time.After(100 * time.Millisecond):
		return nil, false
	}
}
