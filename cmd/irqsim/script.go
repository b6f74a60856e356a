//go:build !rp2040

package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
)

// command is one parsed script line.
type command struct {
	line int
	op   string
	args []string
}

// arity is the minimum argument count per op.
var arity = map[string]int{
	"exti":        1, // exti <mask>
	"sleep":       1, // sleep <duration>
	"wait":        1, // wait <duration>, real time only
	"uart-rx":     2, // uart-rx <name> <data>
	"usb-rx":      2, // usb-rx <name> <data>
	"tx-done":     1, // tx-done <uart name>
	"usb-tx-done": 1,
	"i2c-tx-done": 1,
	"adc":         2, // adc <name> <sample>...
	"can-rx":      2, // can-rx <name> <id> [byte]...
	"i2s-fill":    3, // i2s-fill <name> <offset> <sample>...
	"i2s-half":    1,
	"i2s-full":    1,
	"capture":     3, // capture <name> <channel> <value>
	"encoder":     2, // encoder <name> <count>
	"pwm-half":    2, // pwm-half <name> <channel>
	"pwm-done":    2,
	"tx":          3, // tx <kind> <name> <data>
	"state":       0,
}

// parseLine tokenizes one line. Blank lines and comments yield ok=false.
func parseLine(n int, line string) (command, bool, error) {
	toks, err := shlex.Split(line)
	if err != nil {
		return command{}, false, fmt.Errorf("line %d: %w", n, err)
	}
	if len(toks) == 0 {
		return command{}, false, nil
	}
	op := strings.ToLower(toks[0])
	want, ok := arity[op]
	if !ok {
		return command{}, false, fmt.Errorf("line %d: unknown command %q", n, toks[0])
	}
	if len(toks)-1 < want {
		return command{}, false, fmt.Errorf("line %d: %s needs %d argument(s)", n, op, want)
	}
	return command{line: n, op: op, args: toks[1:]}, true, nil
}

// parseScript reads every command before anything runs, so a typo late in
// a script fails fast.
func parseScript(r io.Reader) ([]command, error) {
	var out []command
	sc := bufio.NewScanner(r)
	for n := 1; sc.Scan(); n++ {
		c, ok, err := parseLine(n, sc.Text())
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}
	return out, sc.Err()
}

func (c command) uint(i int, bits int) (uint64, error) {
	v, err := strconv.ParseUint(c.args[i], 0, bits)
	if err != nil {
		return 0, fmt.Errorf("line %d: %s: bad number %q", c.line, c.op, c.args[i])
	}
	return v, nil
}

func (c command) ints16(from int) ([]int16, error) {
	out := make([]int16, 0, len(c.args)-from)
	for _, a := range c.args[from:] {
		v, err := strconv.ParseInt(a, 0, 16)
		if err != nil {
			return nil, fmt.Errorf("line %d: %s: bad sample %q", c.line, c.op, a)
		}
		out = append(out, int16(v))
	}
	return out, nil
}

func (c command) duration(i int) (time.Duration, error) {
	d, err := time.ParseDuration(c.args[i])
	if err != nil {
		return 0, fmt.Errorf("line %d: %s: %w", c.line, c.op, err)
	}
	return d, nil
}
