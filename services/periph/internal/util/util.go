// Package util holds small task-context helpers shared by the periph service.
package util

import (
	"encoding/json"
	"time"
)

func ResetTimer(t *time.Timer, d time.Duration) {
	if d < 0 {
		d = 0
	}
	if !t.Stop() {
		DrainTimer(t)
	}
	t.Reset(d)
}

func DrainTimer(t *time.Timer) {
	select {
	case <-t.C:
	default:
	}
}

// DecodeJSON converts a bus payload (raw JSON, a JSON string or a decoded
// map) into dst.
func DecodeJSON[T any](src any, dst *T) error {
	switch v := src.(type) {
	case T:
		*dst = v
		return nil
	case *T:
		*dst = *v
		return nil
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return json.Unmarshal(b, dst)
	}
}
