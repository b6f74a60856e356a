// Package config publishes the embedded per-device configuration on the bus,
// one retained message per top-level key.
package config

import (
	"context"

	"gopkg.in/yaml.v3"

	"periph-go/bus"
	"periph-go/errcode"
	"periph-go/x/logx"
)

const (
	serviceName  = "config"
	configPrefix = "config"
	CtxDeviceKey = "device" // context key used for device ID
)

// EmbeddedConfigLookup allows overriding how configs are resolved.
var EmbeddedConfigLookup = func(device string) ([]byte, bool) {
	b, ok := embeddedConfigs[device]
	return b, ok
}

type ConfigService struct {
	Name string
}

func NewConfigService() *ConfigService {
	return &ConfigService{Name: serviceName}
}

// Decode parses a JSON or YAML document whose top level is a mapping.
// JSON is accepted as the YAML subset it is.
func Decode(raw []byte) (map[string]any, error) {
	var m map[string]any
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "config.decode", Err: err}
	}
	if m == nil {
		return nil, &errcode.E{C: errcode.InvalidParams, Op: "config.decode", Msg: "top level is not an object"}
	}
	return m, nil
}

// Publish publishes every top-level key of m as retained config/<key>.
func Publish(conn *bus.Connection, m map[string]any) {
	for k, v := range m {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, k), v, true))
	}
}

// publishConfig reads the device config from embedded data and publishes it.
func (s *ConfigService) publishConfig(ctx context.Context, conn *bus.Connection) error {
	device, _ := ctx.Value(CtxDeviceKey).(string)
	if device == "" {
		return &errcode.E{C: errcode.InvalidParams, Op: "config", Msg: "missing device ID in context"}
	}

	raw, ok := EmbeddedConfigLookup(device)
	if !ok || len(raw) == 0 {
		return &errcode.E{C: errcode.UnknownUnit, Op: "config", Msg: "no embedded config for device: " + device}
	}

	m, err := Decode(raw)
	if err != nil {
		return err
	}
	Publish(conn, m)
	logx.Info(logx.Config, "published", "device", device, "keys", len(m))
	return nil
}

// Start launches the config publisher in a goroutine.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) {
	go func() {
		if err := s.publishConfig(ctx, conn); err != nil {
			logx.Error(logx.Config, "publish failed", "err", err)
		}
	}()
}
