package modbus

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rwirdemann/modsim"
	"github.com/simonvetter/modbus"
)

const ErrReadOnly modsim.Error = "register class is read-only"

// Adapter is a Modbus TCP client for a register map served by ModbusServer
// or any other Modbus device.
type Adapter struct {
	client *modbus.ModbusClient
}

func NewAdapter(url string, timeout time.Duration, unitID uint8) (Adapter, error) {
	client, err := modbus.NewClient(&modbus.ClientConfiguration{
		URL:     url,
		Timeout: timeout,
	})
	if err != nil {
		return Adapter{}, fmt.Errorf("create client: %w", err)
	}
	if err = client.SetUnitId(unitID); err != nil {
		return Adapter{}, fmt.Errorf("set unit id: %w", err)
	}
	if err = client.Open(); err != nil {
		return Adapter{}, fmt.Errorf("open %s: %w", url, err)
	}

	return Adapter{client: client}, nil
}

func (a Adapter) Close() {
	_ = a.client.Close()
}

// ReadRegisters reads quantity values of class starting at addr. Coils and
// discrete inputs are returned as 0 or 1.
func (a Adapter) ReadRegisters(class modsim.RegisterClass, addr, quantity uint16) ([]uint16, error) {
	switch class {
	case modsim.HoldingRegister:
		return a.client.ReadRegisters(addr, quantity, modbus.HOLDING_REGISTER)
	case modsim.InputRegister:
		return a.client.ReadRegisters(addr, quantity, modbus.INPUT_REGISTER)
	case modsim.Coil:
		bb, err := a.client.ReadCoils(addr, quantity)
		if err != nil {
			return nil, err
		}
		return fromBools(bb), nil
	case modsim.DiscreteInput:
		bb, err := a.client.ReadDiscreteInputs(addr, quantity)
		if err != nil {
			return nil, err
		}
		return fromBools(bb), nil
	default:
		return nil, fmt.Errorf("%w: %s", modsim.ErrUnknownClass, class)
	}
}

// WriteRegister writes a single holding register or coil.
func (a Adapter) WriteRegister(class modsim.RegisterClass, addr, value uint16) error {
	switch class {
	case modsim.HoldingRegister:
		return a.client.WriteRegister(addr, value)
	case modsim.Coil:
		return a.client.WriteCoil(addr, value != 0)
	case modsim.DiscreteInput, modsim.InputRegister:
		return fmt.Errorf("%w: %s", ErrReadOnly, class)
	default:
		return fmt.Errorf("%w: %s", modsim.ErrUnknownClass, class)
	}
}

// ReadRegister reads each register and returns the ones that could be read
// with their current value. The unit id of each register is applied before
// reading it.
func (a Adapter) ReadRegister(register []modsim.Register) []modsim.Register {
	var rr []modsim.Register
	for _, r := range register {
		if err := a.client.SetUnitId(r.UnitID); err != nil {
			slog.Error("error setting unit id", "unit", r.UnitID, "err", err)
			continue
		}
		values, err := a.ReadRegisters(r.Class, r.Address, 1)
		if err != nil {
			slog.Error("error reading register", "class", r.Class, "address", r.Address, "err", err)
			continue
		}
		r.Value = values[0]
		rr = append(rr, r)
	}
	return rr
}

func fromBools(bb []bool) []uint16 {
	out := make([]uint16, len(bb))
	for i, b := range bb {
		if b {
			out[i] = 1
		}
	}
	return out
}
