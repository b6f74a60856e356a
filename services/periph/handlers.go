package periph

import (
	"context"
	"errors"
	"time"

	"periph-go/bus"
	"periph-go/errcode"
	"periph-go/services/periph/internal/platform"
	"periph-go/services/periph/internal/util"
	"periph-go/types"
	"periph-go/x/logx"
	"periph-go/x/mathx"
)

// ---- interrupt events ----

func (s *Service) handleEvent(ev isrEvent) {
	ts := int64(s.clock.Now())
	switch ev.kind {
	case platform.KindEXTI:
		var n uint32
		if w := s.watchers[ev.name]; w != nil {
			n = w.Count()
		}
		s.publish(ev.kind, ev.name, types.EdgeEvent{Mask: ev.a, Count: n, TS: ts})

	case platform.KindADC:
		a := s.adcs[ev.name]
		if a == nil {
			return
		}
		n := len(a.Buffer())
		out := types.ConversionEvent{Raw: make([]uint16, n), Volts: make([]float32, n)}
		for i := 0; i < n; i++ {
			out.Raw[i], _ = a.Value(i)
			out.Volts[i], _ = a.Volts(i)
		}
		s.publish(ev.kind, ev.name, out)

	case platform.KindCAN:
		f := ev.frame
		s.publish(ev.kind, ev.name, types.CANEvent{
			ID: f.ID, Extended: f.Extended,
			Data: append([]byte(nil), f.Payload()...),
		})

	case platform.KindUART, platform.KindUSB:
		if ev.tx {
			s.publish(ev.kind, ev.name, types.TxDoneEvent{Len: int(ev.a)})
			return
		}
		if p := s.ports[portKey(ev.kind, ev.name)]; p != nil {
			s.drainPort(p)
		}

	case platform.KindI2C:
		s.publish(ev.kind, ev.name, types.TxDoneEvent{})

	case platform.KindCapture:
		s.publish(ev.kind, ev.name, types.CaptureEvent{Channel: uint8(ev.b), Value: ev.a})

	case platform.KindEncoder:
		var v int32
		if e := s.encoders[ev.name]; e != nil {
			v = e.Value()
		}
		s.publish(ev.kind, ev.name, types.EncoderEvent{Value: v, Step: ev.step})

	case platform.KindPWM:
		phase := "half"
		if ev.a == 1 {
			phase = "finished"
		}
		s.publish(ev.kind, ev.name, types.PWMEvent{Channel: uint8(ev.b), Phase: phase})
	}
}

// drainPort publishes whatever the ring holds. Several markers may be
// coalesced into one event; later markers then find the ring empty.
func (s *Service) drainPort(p *port) {
	n := p.ring.Available()
	if n == 0 {
		return
	}
	buf := make([]byte, n)
	n = p.ring.TryReadInto(buf)
	s.publish(p.kind, p.name, types.RxEvent{Data: string(buf[:n]), Dropped: p.ring.Dropped()})
}

func (s *Service) drainPorts() {
	for _, p := range s.ports {
		s.drainPort(p)
	}
}

// ---- control ----

func (s *Service) handleControl(ctx context.Context, msg *bus.Message) {
	if len(msg.Topic) < 5 {
		s.replyErr(msg, errcode.InvalidTopic)
		return
	}
	kind, _ := msg.Topic[1].(string)
	name, _ := msg.Topic[2].(string)
	method, _ := msg.Topic[4].(string)
	if kind == "" || name == "" {
		s.replyErr(msg, errcode.InvalidTopic)
		return
	}
	if !s.running.Load() {
		s.replyErr(msg, errcode.NotReady)
		return
	}

	switch method {
	case ctrlTx:
		var req types.TxRequest
		if err := util.DecodeJSON(msg.Payload, &req); err != nil {
			s.replyErr(msg, errcode.InvalidParams)
			return
		}
		s.transmit(ctx, msg, platform.Kind(kind), name, req)
	case ctrlRead:
		var req types.ReadRequest
		if err := util.DecodeJSON(msg.Payload, &req); err != nil {
			s.replyErr(msg, errcode.InvalidParams)
			return
		}
		s.read(msg, platform.Kind(kind), name, req)
	default:
		s.replyErr(msg, errcode.InvalidTopic)
	}
}

func (s *Service) transmit(ctx context.Context, msg *bus.Message, k platform.Kind, name string, req types.TxRequest) {
	data := []byte(req.Data)
	switch k {
	case platform.KindUART, platform.KindUSB:
		p := s.ports[portKey(k, name)]
		if p == nil {
			s.replyErr(msg, errcode.UnknownUnit)
			return
		}
		if !req.Blocking {
			s.replyResult(msg, p.tx(data))
			return
		}
		timeout := defaultTxTimeout
		if req.TimeoutMs > 0 {
			timeout = time.Duration(req.TimeoutMs) * time.Millisecond
		}
		// The wait ends on a completion interrupt, not on this loop.
		go func() {
			tctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			err := p.txb(tctx, data)
			if errors.Is(err, context.DeadlineExceeded) {
				err = errcode.Timeout
			}
			s.replyResult(msg, err)
		}()

	case platform.KindCAN:
		c := s.cans[name]
		if c == nil {
			s.replyErr(msg, errcode.UnknownUnit)
			return
		}
		if req.ID != 0 {
			s.replyResult(msg, c.TransmitTo(req.ID, req.Extended, data))
		} else {
			s.replyResult(msg, c.Transmit(data))
		}

	case platform.KindI2C:
		d := s.i2cs[name]
		if d == nil {
			s.replyErr(msg, errcode.UnknownUnit)
			return
		}
		if req.Blocking {
			s.replyResult(msg, d.WriteMem(req.Addr, req.Reg, data))
		} else {
			s.replyResult(msg, d.WriteMemAsync(req.Addr, req.Reg, data))
		}

	default:
		s.replyErr(msg, errcode.Unsupported)
	}
	logx.Debug(logx.Periph, "tx", "kind", string(k), "name", name, "len", len(data))
}

func (s *Service) read(msg *bus.Message, k platform.Kind, name string, req types.ReadRequest) {
	if k != platform.KindI2C {
		s.replyErr(msg, errcode.Unsupported)
		return
	}
	d := s.i2cs[name]
	if d == nil {
		s.replyErr(msg, errcode.UnknownUnit)
		return
	}
	buf := make([]byte, mathx.Clamp(req.Len, 1, 32))
	if err := d.ReadMem(req.Addr, req.Reg, buf); err != nil {
		s.replyErr(msg, err)
		return
	}
	s.conn.Reply(msg, types.ReadReply{OK: true, Data: buf}, false)
}
