// Package console provides the interactive operator console of the simulator:
// start and stop simulations, read and write registers and open the live
// display.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rwirdemann/modsim"
)

const prompt = "modsim> "

// DisplayFunc shows the given registers until the operator leaves the display.
type DisplayFunc func(ctx context.Context, addresses []int) error

type Console struct {
	store   *modsim.Store
	sim     *modsim.Simulator
	display DisplayFunc
	walk    modsim.Walk
}

func New(store *modsim.Store, sim *modsim.Simulator, display DisplayFunc) *Console {
	return &Console{
		store:   store,
		sim:     sim,
		display: display,
		walk:    modsim.DefaultWalk(),
	}
}

// Start reads commands from in until quit, EOF or ctx is done.
func (c *Console) Start(ctx context.Context, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)

	fmt.Fprintln(out, "modsim console - type 'help' for available commands, 'quit' to exit")

	for ctx.Err() == nil {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return
		}
		if quit := c.handleCommand(ctx, scanner.Text(), out); quit {
			return
		}
	}
}

func (c *Console) handleCommand(ctx context.Context, line string, out io.Writer) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}

	var err error
	switch parts[0] {
	case "quit", "exit", "q":
		fmt.Fprintln(out, "Goodbye!")
		return true
	case "help", "h", "?":
		printHelp(out)
	case "start":
		err = c.start(parts[1:], out)
	case "stop":
		err = c.stop(parts[1:], out)
	case "set":
		err = c.set(parts[1:], out)
	case "get":
		err = c.get(parts[1:], out)
	case "active":
		fmt.Fprintf(out, "active: %v\n", c.sim.ActiveRegisters())
	case "display":
		err = c.showDisplay(ctx, parts[1:], out)
	default:
		err = fmt.Errorf("unknown command %q", parts[0])
	}
	if err != nil {
		fmt.Fprintf(out, "error: %v\n", err)
	}
	return false
}

// start <reg> [range] [period] [step]
func (c *Console) start(args []string, out io.Writer) error {
	if len(args) < 1 || len(args) > 4 {
		return errors.New("usage: start <reg> [range] [period] [step]")
	}
	reg, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}

	w := c.walk
	if len(args) > 1 {
		n, err := strconv.ParseUint(args[1], 10, 16)
		if err != nil {
			return fmt.Errorf("range: %w", err)
		}
		w.Range = uint16(n)
	}
	if len(args) > 2 {
		if w.Period, err = parsePeriod(args[2]); err != nil {
			return fmt.Errorf("period: %w", err)
		}
	}
	if len(args) > 3 {
		n, err := strconv.ParseUint(args[3], 10, 16)
		if err != nil {
			return fmt.Errorf("step: %w", err)
		}
		w.MaxStep = uint16(n)
	}

	if err := c.sim.Start(reg, w); err != nil {
		return err
	}
	fmt.Fprintf(out, "simulating r%d in [0, %d] every ~%s, step %d\n", reg, w.Range, w.Period, w.MaxStep)
	return nil
}

// parsePeriod accepts Go durations (500ms) and plain seconds (0.5).
func parsePeriod(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	return time.Duration(f * float64(time.Second)), nil
}

// stop [reg|all]
func (c *Console) stop(args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "all" {
		c.sim.StopAll()
		fmt.Fprintln(out, "stopped all simulations")
		return nil
	}
	reg, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	if err := c.sim.Stop(reg); err != nil {
		return err
	}
	fmt.Fprintf(out, "stopped r%d\n", reg)
	return nil
}

// set <reg> <value>
func (c *Console) set(args []string, out io.Writer) error {
	if len(args) != 2 {
		return errors.New("usage: set <reg> <value>")
	}
	reg, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	v, err := strconv.ParseUint(args[1], 10, 16)
	if err != nil {
		return fmt.Errorf("value: %w", err)
	}
	if err := c.store.Set(modsim.HoldingRegister, reg, uint16(v)); err != nil {
		return err
	}
	fmt.Fprintf(out, "r%d = %d\n", reg, v)
	return nil
}

// get <reg>
func (c *Console) get(args []string, out io.Writer) error {
	if len(args) != 1 {
		return errors.New("usage: get <reg>")
	}
	reg, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	v, err := c.store.Get(modsim.HoldingRegister, reg)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "r%d = %d\n", reg, v)
	return nil
}

// display [reg...]
func (c *Console) showDisplay(ctx context.Context, args []string, out io.Writer) error {
	if c.display == nil {
		return errors.New("display not available")
	}
	addresses := make([]int, 0, len(args))
	for _, a := range args {
		reg, err := strconv.Atoi(a)
		if err != nil {
			return fmt.Errorf("register: %w", err)
		}
		addresses = append(addresses, reg)
	}
	if err := c.display(ctx, addresses); err != nil {
		return err
	}
	fmt.Fprintln(out, "Stopped.")
	return nil
}

func printHelp(out io.Writer) {
	fmt.Fprintln(out, `Commands:
  start <reg> [range] [period] [step]  simulate a holding register (defaults: 100 1s 2)
  stop [reg|all]                       stop one or all simulations
  set <reg> <value>                    write a holding register
  get <reg>                            read a holding register
  active                               list simulated registers
  display [reg...]                     live view (all registers by default), q to leave
  help                                 show this help
  quit                                 leave the console`)
}
