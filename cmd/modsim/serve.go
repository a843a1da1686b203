package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rwirdemann/modsim"
	"github.com/rwirdemann/modsim/console"
	"github.com/rwirdemann/modsim/display"
	"github.com/rwirdemann/modsim/modbus"
	"github.com/spf13/cobra"
)

var serveFlags struct {
	config      string
	url         string
	registers   int
	simulate    string
	rangeMax    uint16
	period      time.Duration
	step        uint16
	display     bool
	displayRegs string
	console     bool
	logFile     string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the register bank over Modbus TCP",
	Long: `Serve the register bank over Modbus TCP. Simulations from the configuration ` +
		`and --simulate are started right away. With --display the live view is shown, ` +
		`with --console an interactive console controls the simulation.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cmd)
	},
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.config, "config", "", "configuration directory containing config.json")
	f.StringVar(&serveFlags.url, "url", "", "listen url, e.g. tcp://0.0.0.0:502")
	f.IntVar(&serveFlags.registers, "registers", 0, "number of registers per class")
	f.StringVar(&serveFlags.simulate, "simulate", "", "holding registers to simulate, e.g. 0,1,10-19")
	f.Uint16Var(&serveFlags.rangeMax, "range", 100, "upper bound of simulated values")
	f.DurationVar(&serveFlags.period, "period", time.Second, "average update period of simulated values")
	f.Uint16Var(&serveFlags.step, "step", 2, "maximum change per update")
	f.BoolVar(&serveFlags.display, "display", false, "show the live register display")
	f.StringVar(&serveFlags.displayRegs, "display-registers", "", "registers to display (default: from config or all)")
	f.BoolVar(&serveFlags.console, "console", false, "start the interactive console")
	f.StringVar(&serveFlags.logFile, "log-file", "", "write logs to this file (logs are discarded while the display or console is active)")
}

func loadConfig(cmd *cobra.Command) (modsim.Config, error) {
	config := modsim.DefaultConfig()
	if serveFlags.config != "" {
		var err error
		if config, err = modsim.LoadConfig(serveFlags.config); err != nil {
			return modsim.Config{}, err
		}
	}
	if err := config.ApplyEnv(".env"); err != nil {
		return modsim.Config{}, err
	}

	if cmd.Flags().Changed("url") {
		config.Server.Url = serveFlags.url
	}
	if cmd.Flags().Changed("registers") {
		config.Registers = serveFlags.registers
	}
	if cmd.Flags().Changed("simulate") {
		regs, err := parseRegisters(serveFlags.simulate)
		if err != nil {
			return modsim.Config{}, err
		}
		for _, r := range regs {
			config.Simulations = append(config.Simulations, modsim.Simulation{
				Register: r,
				Range:    int(serveFlags.rangeMax),
				Period:   int(serveFlags.period / time.Millisecond),
				MaxStep:  int(serveFlags.step),
			})
		}
	}
	if cmd.Flags().Changed("display-registers") {
		regs, err := parseRegisters(serveFlags.displayRegs)
		if err != nil {
			return modsim.Config{}, err
		}
		config.Display.Registers = regs
	}
	return config, nil
}

func setupLogging() (func(), error) {
	var w io.Writer = os.Stderr
	closer := func() {}
	switch {
	case serveFlags.logFile != "":
		f, err := os.OpenFile(serveFlags.logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		w = f
		closer = func() { _ = f.Close() }
	case serveFlags.display || serveFlags.console:
		w = io.Discard
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, nil)))
	return closer, nil
}

func serve(ctx context.Context, cmd *cobra.Command) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	closeLog, err := setupLogging()
	if err != nil {
		return err
	}
	defer closeLog()

	store := modsim.NewStore(config.Registers)
	sim := modsim.NewSimulator(store)
	server := modbus.NewModbusServer(config.Server.Url, store, config.Identity, nil,
		modbus.WithTimeout(config.Server.TimeoutDuration()),
		modbus.WithMaxClients(config.Server.MaxClients))
	if err := server.Start(); err != nil {
		return err
	}
	defer func() {
		sim.StopAll()
		if err := server.Stop(); err != nil {
			slog.Error("stop server", "err", err)
		}
		sim.Wait()
		slog.Info("server stopped")
	}()

	for _, s := range config.Simulations {
		w, err := s.Walk()
		if err != nil {
			return fmt.Errorf("simulation of register %d: %w", s.Register, err)
		}
		if err := sim.Start(s.Register, w); err != nil {
			return fmt.Errorf("simulation of register %d: %w", s.Register, err)
		}
	}

	showDisplay := func(ctx context.Context, addresses []int) error {
		return display.Run(ctx, store, addresses,
			display.WithRefresh(time.Duration(config.Display.Refresh)*time.Millisecond),
			display.WithPageInterval(time.Duration(config.Display.Page)*time.Millisecond))
	}

	out := cmd.OutOrStdout()
	switch {
	case serveFlags.console:
		console.New(store, sim, showDisplay).Start(ctx, cmd.InOrStdin(), out)
		return nil
	case serveFlags.display:
		err := showDisplay(ctx, config.Display.Registers)
		if errors.Is(err, modsim.ErrInvalidSelection) {
			return err
		}
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "display: %v\n", err)
		}
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprintf(out, "display closed, still serving on %s (ctrl+c to stop)\n", config.Server.Url)
	default:
		fmt.Fprintf(out, "serving %d registers on %s (ctrl+c to stop)\n", store.Size(), config.Server.Url)
	}

	<-ctx.Done()
	return nil
}
