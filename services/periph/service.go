// Package periph bridges interrupt-driven peripheral objects onto the bus.
// Interrupt callbacks only enqueue; all publishing happens on the service
// goroutine.
package periph

import (
	"context"
	"sync/atomic"
	"time"

	"periph-go/bus"
	"periph-go/errcode"
	"periph-go/services/periph/internal/adc"
	"periph-go/services/periph/internal/can"
	"periph-go/services/periph/internal/core"
	"periph-go/services/periph/internal/exti"
	"periph-go/services/periph/internal/i2c"
	"periph-go/services/periph/internal/platform"
	"periph-go/services/periph/internal/timer"
	"periph-go/services/periph/internal/txq"
	"periph-go/services/periph/internal/util"
	"periph-go/types"
	"periph-go/x/logx"
	"periph-go/x/shmring"
	"periph-go/x/timex"
)

const (
	tokPeriph  = "periph"
	tokConfig  = "config"
	tokState   = "state"
	tokEvent   = "event"
	tokControl = "control"

	ctrlTx   = "tx"
	ctrlRead = "read"

	defaultTxTimeout = time.Second
)

var (
	topicConfig = bus.Topic{tokConfig, tokPeriph}
	topicState  = bus.Topic{tokPeriph, tokState}
	topicCtrl   = bus.Topic{tokPeriph, "+", "+", tokControl, "+"}
)

func eventTopic(k platform.Kind, name string) bus.Topic {
	return bus.Topic{tokPeriph, string(k), name, tokEvent}
}

// isrEvent is written from interrupt callbacks; it must stay a plain value.
type isrEvent struct {
	kind  platform.Kind
	name  string
	a, b  uint32
	tx    bool
	step  int8
	frame can.Frame
}

// port is a byte-stream peripheral whose rx bytes travel through a ring.
type port struct {
	kind platform.Kind
	name string
	ring *shmring.Ring
	tx   func([]byte) error
	txb  func(context.Context, []byte) error
	q    *txq.Queue
	errs func() uint32 // receive re-arm failures, nil when not tracked
}

type Service struct {
	conn  *bus.Connection
	board platform.Board
	clock timex.Clock
	r     *platform.Routers

	running atomic.Bool
	events  chan isrEvent
	drops   atomic.Uint32

	cfg      types.PeriphConfig
	teardown []func() error
	units    map[string]string

	watchers map[string]*exti.Watcher
	adcs     map[string]*adc.ADC
	cans     map[string]*can.CAN
	i2cs     map[string]*i2c.I2C
	encoders map[string]*timer.Encoder
	ports    map[string]*port // "kind/name"

	cancelStreams context.CancelFunc
	timer         *time.Timer
}

// New attaches a fresh set of routers to board. Edges are ignored until a
// config has been applied.
func New(conn *bus.Connection, board platform.Board, clock timex.Clock) *Service {
	if clock == nil {
		clock = timex.NewMonotonic()
	}
	s := &Service{conn: conn, board: board, clock: clock}
	s.r = platform.NewRouters(clock, s.running.Load, board.Lines())
	board.Attach(s.r)
	s.reset()
	return s
}

func (s *Service) reset() {
	s.teardown = nil
	s.units = map[string]string{}
	s.watchers = map[string]*exti.Watcher{}
	s.adcs = map[string]*adc.ADC{}
	s.cans = map[string]*can.CAN{}
	s.i2cs = map[string]*i2c.I2C{}
	s.encoders = map[string]*timer.Encoder{}
	s.ports = map[string]*port{}
}

// Routers exposes the inbound interrupt sides, for board glue and tests.
func (s *Service) Routers() *platform.Routers { return s.r }

// EventDrops counts interrupt events lost because the queue was full.
func (s *Service) EventDrops() uint32 { return s.drops.Load() }

// emit is called from interrupt context.
func (s *Service) emit(ev isrEvent) {
	select {
	case s.events <- ev:
	default:
		s.drops.Add(1)
	}
}

func (s *Service) Run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(topicConfig)
	ctrlSub := s.conn.Subscribe(topicCtrl)
	defer s.conn.Unsubscribe(cfgSub)
	defer s.conn.Unsubscribe(ctrlSub)

	s.publishState("idle")

	s.timer = time.NewTimer(time.Hour)
	if !s.timer.Stop() {
		util.DrainTimer(s.timer)
	}

	for {
		select {
		case <-ctx.Done():
			s.stopAll()
			s.publishState("stopped")
			logx.Info(logx.Periph, "stopped", "drops", s.drops.Load())
			return

		case msg := <-cfgSub.Channel():
			var cfg types.PeriphConfig
			if err := util.DecodeJSON(msg.Payload, &cfg); err != nil {
				logx.Warn(logx.Config, "bad periph config", "err", err)
				continue
			}
			s.apply(ctx, cfg)

		case msg := <-ctrlSub.Channel():
			s.handleControl(ctx, msg)

		case ev := <-s.events:
			s.handleEvent(ev)

		case <-s.timer.C:
			s.drainPorts()
			s.publishState("ready")
			util.ResetTimer(s.timer, s.interval())
		}
	}
}

func (s *Service) interval() time.Duration {
	return time.Duration(s.cfg.StateIntervalMs) * time.Millisecond
}

// apply tears down whatever is running and builds cfg. Units that fail to
// come up are reported in the state and skipped.
func (s *Service) apply(ctx context.Context, cfg types.PeriphConfig) {
	s.stopAll()
	cfg.Normalize()
	s.cfg = cfg
	// The queue is sized once; interrupt callbacks may still hold it.
	if s.events == nil {
		s.events = make(chan isrEvent, cfg.EventQueue)
	}

	sctx, cancel := context.WithCancel(ctx)
	s.cancelStreams = cancel

	s.buildEXTI(cfg.EXTI)
	for _, c := range cfg.ADC {
		s.buildADC(c)
	}
	for _, c := range cfg.CAN {
		s.buildCAN(c)
	}
	for _, c := range cfg.UART {
		s.buildUART(c)
	}
	for _, c := range cfg.USB {
		s.buildUSB(c)
	}
	for _, c := range cfg.I2C {
		s.buildI2C(c)
	}
	for _, c := range cfg.I2S {
		s.buildI2S(sctx, c)
	}
	for _, c := range cfg.Capture {
		s.buildCapture(c)
	}
	for _, c := range cfg.Encoder {
		s.buildEncoder(c)
	}
	for _, c := range cfg.PWM {
		s.buildPWM(c)
	}

	s.running.Store(true)
	s.publishState("ready")
	util.ResetTimer(s.timer, s.interval())
	logx.Info(logx.Periph, "configured", "board", s.board.Name(), "units", len(s.units))
}

// stopAll deinitialises objects in reverse build order.
func (s *Service) stopAll() {
	s.running.Store(false)
	if s.cancelStreams != nil {
		s.cancelStreams()
		s.cancelStreams = nil
	}
	for i := len(s.teardown) - 1; i >= 0; i-- {
		if err := s.teardown[i](); err != nil {
			logx.Warn(logx.Periph, "deinit failed", "err", err)
		}
	}
	s.reset()
}

type lifecycle interface {
	Init() error
	Deinit() error
}

// start initialises obj and records the outcome under kind/name.
func (s *Service) start(k platform.Kind, name string, obj lifecycle) bool {
	key := string(k) + "/" + name
	if err := obj.Init(); err != nil {
		s.units[key] = string(errcode.Of(err))
		logx.Warn(logx.Periph, "init failed", "unit", key, "err", err)
		return false
	}
	s.units[key] = string(errcode.OK)
	s.teardown = append(s.teardown, obj.Deinit)
	return true
}

func (s *Service) fail(k platform.Kind, name string, err error) {
	key := string(k) + "/" + name
	s.units[key] = string(errcode.Of(err))
	logx.Warn(logx.Periph, "unit unavailable", "unit", key, "err", err)
}

func (s *Service) unit(k platform.Kind, name string, supported bool) (core.UnitID, bool) {
	if !supported {
		s.fail(k, name, errcode.Unsupported)
		return 0, false
	}
	u, ok := s.board.Unit(k, name)
	if !ok {
		s.fail(k, name, errcode.UnknownUnit)
		return 0, false
	}
	return u, true
}

func (s *Service) publishState(level string) {
	st := types.PeriphState{
		Level:      level,
		Board:      s.board.Name(),
		Units:      make(map[string]string, len(s.units)),
		EventDrops: s.drops.Load(),
		Suppressed: s.r.EXTI.Suppressed(),
		TS:         int64(s.clock.Now()),
	}
	for k, v := range s.units {
		st.Units[k] = v
	}
	for _, p := range s.ports {
		st.RxDropped += p.ring.Dropped()
		st.TxRejected += p.q.Stats().Rejected
		st.TxPending += uint32(p.q.Pending())
		if p.errs != nil {
			st.RxErrors += p.errs()
		}
	}
	for _, c := range s.cans {
		st.RxErrors += c.RxErrors()
	}
	s.conn.Publish(s.conn.NewMessage(topicState, st, true))
}

func (s *Service) publish(k platform.Kind, name string, payload any) {
	s.conn.Publish(s.conn.NewMessage(eventTopic(k, name), payload, false))
}

func (s *Service) replyErr(req *bus.Message, err error) {
	s.conn.Reply(req, types.ErrorReply{OK: false, Error: string(errcode.Of(err))}, false)
}

// replyResult reports every non-nil status, busy_queued included, so the
// requester can tell a queued transmit from a started one.
func (s *Service) replyResult(req *bus.Message, err error) {
	if err != nil {
		s.replyErr(req, err)
		return
	}
	s.conn.Reply(req, types.OKReply{OK: true}, false)
}
