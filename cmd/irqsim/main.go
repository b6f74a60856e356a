//go:build !rp2040

// Command irqsim runs the periph service on the simulated board and drives
// it from a script of interrupt events, printing all periph bus traffic.
//
//	irqsim -config board.yaml -script events.txt
//
// Script lines (tokenized like a shell; # starts a comment):
//
//	exti 0x1
//	sleep 100ms
//	uart-rx uart0 "hello"
//	tx uart uart0 "ping"
//	tx-done uart0
//	i2s-fill i2s0 0 100 -200
//	i2s-half i2s0
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"gopkg.in/yaml.v3"

	"periph-go/bus"
	"periph-go/services/config"
	"periph-go/services/periph"
	"periph-go/types"
	"periph-go/x/logx"
	"periph-go/x/timex"
)

type options struct {
	configPath string
	settle     time.Duration
}

func main() {
	var opts options
	scriptPath := flag.String("script", "", "script file (default: stdin)")
	flag.StringVar(&opts.configPath, "config", "", "YAML board config (default: embedded sim config)")
	flag.DurationVar(&opts.settle, "settle", 5*time.Millisecond, "real time allowed after each command")
	printCfg := flag.Bool("print-config", false, "print the normalized periph config as YAML and exit")
	verbose := flag.Bool("v", false, "debug logging on stderr")
	flag.Parse()

	if *verbose {
		logx.SetLevel(logx.LevelDebug)
	}

	raw, err := loadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "irqsim:", err)
		os.Exit(1)
	}

	if *printCfg {
		if err := printConfig(os.Stdout, raw); err != nil {
			fmt.Fprintln(os.Stderr, "irqsim:", err)
			os.Exit(1)
		}
		return
	}

	in := io.Reader(os.Stdin)
	if *scriptPath != "" {
		f, err := os.Open(*scriptPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "irqsim:", err)
			os.Exit(1)
		}
		defer f.Close()
		in = f
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, opts, raw, in, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "irqsim:", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (map[string]any, error) {
	var data []byte
	if path == "" {
		b, ok := config.EmbeddedConfigLookup("sim")
		if !ok {
			return nil, fmt.Errorf("no embedded sim config")
		}
		data = b
	} else {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		data = b
	}
	m, err := config.Decode(data)
	if err != nil {
		return nil, err
	}
	if _, ok := m["periph"]; !ok {
		return nil, fmt.Errorf("config has no periph section")
	}
	return m, nil
}

func printConfig(w io.Writer, raw map[string]any) error {
	section, err := yaml.Marshal(raw["periph"])
	if err != nil {
		return err
	}
	var cfg types.PeriphConfig
	if err := yaml.Unmarshal(section, &cfg); err != nil {
		return err
	}
	cfg.Normalize()
	out, err := yaml.Marshal(&cfg)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

// run parses the whole script, brings the service up and executes it.
func run(ctx context.Context, opts options, raw map[string]any, in io.Reader, w io.Writer) error {
	script, err := parseScript(in)
	if err != nil {
		return err
	}

	b := bus.NewBus(64)
	s := &sim{
		board:  periph.NewSimBoard(),
		clock:  &timex.Manual{},
		conn:   b.NewConnection("irqsim"),
		out:    &printer{w: w},
		settle: opts.settle,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	svc := periph.New(b.NewConnection("periph"), s.board, s.clock)
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Run(ctx)
	}()

	monCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	ready := make(chan struct{})
	monitored := make(chan struct{})
	go func() {
		defer close(monitored)
		s.monitor(monCtx, ready)
	}()

	config.Publish(b.NewConnection("config"), raw)
	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		return fmt.Errorf("service did not become ready")
	case <-ctx.Done():
		return ctx.Err()
	}

	for _, c := range script {
		if err := s.exec(ctx, c); err != nil {
			return err
		}
	}

	cancel()
	<-done
	select {
	case <-monitored:
	case <-time.After(time.Second):
		stopMonitor()
	}
	s.out.printf("%-32s drops=%d\n", "sim/done", svc.EventDrops())
	return nil
}
