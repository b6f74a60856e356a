//go:build rp2040

// Command pico-periph is an on-target smoke test: it configures a button
// watcher, a UART and an I2C bus, then pings the UART once a second and
// prints every periph topic it sees.
package main

import (
	"context"
	"runtime"
	"time"

	"periph-go/bus"
	"periph-go/services/periph"
	"periph-go/types"
)

const buttonPin = 15

// no fmt on target
func printTopicWith(prefix string, t bus.Topic) {
	print(prefix)
	print(" ")
	for i := 0; i < t.Len(); i++ {
		if i > 0 {
			print("/")
		}
		switch v := t.At(i).(type) {
		case string:
			print(v)
		case int:
			print(v)
		default:
			print("?")
		}
	}
	println()
}

func main() {
	time.Sleep(3 * time.Second)
	ctx := context.Background()

	println("[main] bootstrapping bus …")
	b := bus.NewBus(4)
	svcConn := b.NewConnection("periph")
	uiConn := b.NewConnection("ui")

	mon := uiConn.Subscribe(bus.T("periph", "#"))
	ready := make(chan struct{})
	go func() {
		signalled := false
		for m := range mon.Channel() {
			printTopicWith("[monitor] <-", m.Topic)
			switch p := m.Payload.(type) {
			case types.PeriphState:
				println("[monitor]   level:", p.Level, "drops:", p.EventDrops, "suppressed:", p.Suppressed)
				if p.Level == "ready" && !signalled {
					signalled = true
					close(ready)
				}
			case types.RxEvent:
				println("[monitor]   rx:", p.Data)
			case types.EdgeEvent:
				println("[monitor]   edge count:", p.Count)
			}
		}
	}()

	board := periph.DefaultBoard()
	defer board.Close()
	println("[main] starting periph on", board.Name())
	go periph.New(svcConn, board, nil).Run(ctx)

	cfg := types.PeriphConfig{
		EXTI: types.EXTIConfig{
			Watchers: []types.WatcherConfig{{Name: "button", Mask: 1 << buttonPin}},
		},
		UART: []types.UARTConfig{{Name: "uart0", Baud: 115200}},
		I2C:  []types.I2CConfig{{Name: "i2c0"}},
	}
	uiConn.Publish(uiConn.NewMessage(bus.T("config", "periph"), cfg, true))
	<-ready

	tx := bus.T("periph", string(periph.KindUART), "uart0", "control", "tx")
	for {
		req := types.TxRequest{Data: "ping\r\n", Blocking: true, TimeoutMs: 200}
		reply, err := uiConn.RequestWait(ctx, uiConn.NewMessage(tx, req, false))
		switch {
		case err != nil:
			println("[main] tx error:", err.Error())
		default:
			if e, ok := reply.Payload.(types.ErrorReply); ok {
				println("[main] tx failed:", e.Error)
			}
		}
		printMem()
		time.Sleep(time.Second)
	}
}

func printMem() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	println("[mem]", "alloc:", uint32(ms.Alloc), "heapInuse:", uint32(ms.HeapInuse), "mallocs:", uint32(ms.Mallocs), "frees:", uint32(ms.Frees))
}
