package modsim

import (
	"fmt"
	"strings"
)

// RegisterClass selects one of the four Modbus address spaces.
type RegisterClass uint8

const (
	DiscreteInput RegisterClass = iota
	Coil
	HoldingRegister
	InputRegister

	classCount = 4
)

func (c RegisterClass) String() string {
	switch c {
	case DiscreteInput:
		return "discrete"
	case Coil:
		return "coil"
	case HoldingRegister:
		return "holding"
	case InputRegister:
		return "input"
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

// FunctionCode returns the Modbus function code used to read the class.
func (c RegisterClass) FunctionCode() uint8 {
	switch c {
	case Coil:
		return 0x01
	case DiscreteInput:
		return 0x02
	case HoldingRegister:
		return 0x03
	case InputRegister:
		return 0x04
	}
	return 0
}

func (c RegisterClass) valid() bool {
	return c < classCount
}

// ParseRegisterClass accepts coil | discrete | input | holding and their long forms.
func ParseRegisterClass(s string) (RegisterClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "discrete", "discrete-input", "di":
		return DiscreteInput, nil
	case "coil", "coils", "co":
		return Coil, nil
	case "holding", "holding-register", "hr":
		return HoldingRegister, nil
	case "input", "input-register", "ir":
		return InputRegister, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownClass, s)
}

type Register struct {
	UnitID  uint8         // the unit (slave) id the register is read from
	Class   RegisterClass // coil | discrete | input | holding
	Address uint16        // the address of this register
	Value   uint16        // coils and discrete inputs hold 0 or 1
}
