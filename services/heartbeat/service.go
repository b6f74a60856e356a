// Package heartbeat periodically logs that the device is alive together
// with the last periph state it saw.
package heartbeat

import (
	"context"
	"time"

	"periph-go/bus"
	"periph-go/types"
	"periph-go/x/logx"
)

var (
	topicConfigHeartbeat = bus.Topic{"config", "heartbeat"}
	topicPeriphState     = bus.Topic{"periph", "state"}
)

const defaultInterval = 10 * time.Second

type Service struct {
	last  types.PeriphState
	beats uint32
}

// interval reads {"interval": seconds}; decoded configs carry int or float64.
func interval(payload any) (time.Duration, bool) {
	m, ok := payload.(map[string]any)
	if !ok {
		return 0, false
	}
	var secs float64
	switch v := m["interval"].(type) {
	case int:
		secs = float64(v)
	case float64:
		secs = v
	default:
		return 0, false
	}
	if secs <= 0 {
		return 0, false
	}
	return time.Duration(secs * float64(time.Second)), true
}

func (s *Service) beat() {
	s.beats++
	logx.Info(logx.Periph, "heartbeat",
		"beat", s.beats,
		"level", s.last.Level,
		"event_drops", s.last.EventDrops,
		"rx_dropped", s.last.RxDropped,
		"rx_errors", s.last.RxErrors,
		"suppressed", s.last.Suppressed)
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection) {
	cfgSub := conn.Subscribe(topicConfigHeartbeat)
	stSub := conn.Subscribe(topicPeriphState)
	defer conn.Unsubscribe(cfgSub)
	defer conn.Unsubscribe(stSub)

	tick := time.NewTicker(defaultInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			logx.Info(logx.Periph, "heartbeat stopping", "beats", s.beats)
			return
		case <-tick.C:
			s.beat()
		case msg := <-stSub.Channel():
			if st, ok := msg.Payload.(types.PeriphState); ok {
				s.last = st
			}
		case msg := <-cfgSub.Channel():
			if d, ok := interval(msg.Payload); ok {
				tick.Reset(d)
				logx.Info(logx.Periph, "heartbeat interval", "ms", int(d/time.Millisecond))
			}
		}
	}
}

// Start the heartbeat service.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	go s.serviceLoop(ctx, conn)
	return nil
}
