package modsim

type Error string

const (
	ErrOutOfRange          Error = "register address out of range"
	ErrUnknownClass        Error = "unknown register class"
	ErrInvalidWalk         Error = "invalid random walk"
	ErrInvalidSelection    Error = "invalid register selection"
	ErrTerminalUnavailable Error = "terminal unavailable"
)

// Error implements the error interface.
func (me Error) Error() (s string) {
	s = string(me)
	return
}
