package main

import (
	"context"
	"time"

	"periph-go/bus"
	"periph-go/services/config"
	"periph-go/services/heartbeat"
	"periph-go/services/periph"
	"periph-go/x/logx"
)

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)

	board := periph.DefaultBoard()
	defer board.Close()

	// The board name doubles as the embedded config key.
	ctx := context.WithValue(context.Background(), config.CtxDeviceKey, board.Name())
	b := bus.NewBus(8)

	svc := periph.New(b.NewConnection("periph"), board, nil)
	go svc.Run(ctx)

	hb := &heartbeat.Service{}
	hb.Start(ctx, b.NewConnection("heartbeat"))

	config.NewConfigService().Start(ctx, b.NewConnection("config"))

	logx.Info(logx.Periph, "boot", "board", board.Name())
	<-ctx.Done()
}
