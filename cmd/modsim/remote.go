package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/rwirdemann/modsim"
	"github.com/rwirdemann/modsim/modbus"
	"github.com/spf13/cobra"
)

var remoteFlags struct {
	url     string
	unit    uint8
	class   string
	timeout time.Duration
}

var getCmd = &cobra.Command{
	Use:   "get <address> [count]",
	Short: "Read registers from a running device",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		class, err := modsim.ParseRegisterClass(remoteFlags.class)
		if err != nil {
			return err
		}
		addr, err := parseUint16(args[0])
		if err != nil {
			return err
		}
		count := uint16(1)
		if len(args) == 2 {
			if count, err = parseUint16(args[1]); err != nil {
				return err
			}
		}

		a, err := modbus.NewAdapter(remoteFlags.url, remoteFlags.timeout, remoteFlags.unit)
		if err != nil {
			return err
		}
		defer a.Close()

		values, err := a.ReadRegisters(class, addr, count)
		if err != nil {
			return err
		}
		for i, v := range values {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d: %d\n", class, int(addr)+i, v)
		}
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set <address> <value>",
	Short: "Write a holding register or coil of a running device",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		class, err := modsim.ParseRegisterClass(remoteFlags.class)
		if err != nil {
			return err
		}
		addr, err := parseUint16(args[0])
		if err != nil {
			return err
		}
		value, err := parseUint16(args[1])
		if err != nil {
			return err
		}

		a, err := modbus.NewAdapter(remoteFlags.url, remoteFlags.timeout, remoteFlags.unit)
		if err != nil {
			return err
		}
		defer a.Close()

		return a.WriteRegister(class, addr, value)
	},
}

func init() {
	for _, c := range []*cobra.Command{getCmd, setCmd} {
		f := c.Flags()
		f.StringVar(&remoteFlags.url, "url", "tcp://localhost:502", "device url")
		f.Uint8Var(&remoteFlags.unit, "unit", 1, "unit id")
		f.StringVar(&remoteFlags.class, "class", "holding", "register class: coil | discrete | input | holding")
		f.DurationVar(&remoteFlags.timeout, "timeout", time.Second, "request timeout")
	}
}

func parseUint16(s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 0, 16)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, err)
	}
	return uint16(v), nil
}
