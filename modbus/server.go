package modbus

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rwirdemann/modsim"
	"github.com/simonvetter/modbus"
)

type Logger interface {
	Append(text string)
}

type slogLogger struct{}

func (slogLogger) Append(text string) {
	slog.Info(text)
}

// ModbusServer exposes a register store over Modbus TCP. Framing and
// connection handling are done by simonvetter/modbus; ModbusServer answers
// its requests from the store.
type ModbusServer struct {
	url        string
	timeout    time.Duration
	maxClients uint
	store      *modsim.Store
	identity   modsim.DeviceIdentity
	logger     Logger
	server     *modbus.ModbusServer

	mu      sync.RWMutex
	offline map[uint8]bool
}

type Option func(*ModbusServer)

// WithTimeout sets the idle timeout after which client connections are closed.
func WithTimeout(d time.Duration) Option {
	return func(s *ModbusServer) { s.timeout = d }
}

func WithMaxClients(n uint) Option {
	return func(s *ModbusServer) { s.maxClients = n }
}

// NewModbusServer creates a server for url (e.g. tcp://0.0.0.0:502). A nil
// logger logs through slog.
func NewModbusServer(url string, store *modsim.Store, identity modsim.DeviceIdentity, logger Logger, opts ...Option) *ModbusServer {
	if logger == nil {
		logger = slogLogger{}
	}
	s := &ModbusServer{
		url:        url,
		timeout:    30 * time.Second,
		maxClients: 10,
		store:      store,
		identity:   identity,
		logger:     logger,
		offline:    make(map[uint8]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *ModbusServer) Start() (err error) {
	s.server, err = modbus.NewServer(&modbus.ServerConfiguration{
		URL:        s.url,
		Timeout:    s.timeout,
		MaxClients: s.maxClients,
	}, s)
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}
	if err = s.server.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	s.logger.Append(fmt.Sprintf("%s: serving %d registers per class on %s as %s %s (%s)",
		time.Now().Format(time.DateTime), s.store.Size(), s.url,
		s.identity.VendorName, s.identity.ProductName, s.identity.MajorMinorRevision))
	return nil
}

func (s *ModbusServer) Stop() error {
	if s.server == nil {
		return nil
	}
	return s.server.Stop()
}

// Identity returns the device identity the server was created with.
func (s *ModbusServer) Identity() modsim.DeviceIdentity {
	return s.identity
}

// Connect brings a unit back online. All units are online by default.
func (s *ModbusServer) Connect(unitID uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.offline, unitID)
}

// Disconnect takes a unit offline; requests addressed to it fail as if the
// target device did not respond.
func (s *ModbusServer) Disconnect(unitID uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offline[unitID] = true
}

func (s *ModbusServer) online(unitID uint8) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.offline[unitID]
}

func (s *ModbusServer) HandleCoils(req *modbus.CoilsRequest) ([]bool, error) {
	if err := s.accept(req.ClientAddr, req.UnitId, modsim.Coil, req.Addr, req.Quantity, req.IsWrite); err != nil {
		return nil, err
	}
	if req.IsWrite {
		values := make([]uint16, len(req.Args))
		for i, b := range req.Args {
			if b {
				values[i] = 1
			}
		}
		if err := s.store.SetRange(modsim.Coil, int(req.Addr), values); err != nil {
			return nil, s.mapError(err)
		}
		return nil, nil
	}
	values, err := s.store.GetRange(modsim.Coil, int(req.Addr), int(req.Quantity))
	if err != nil {
		return nil, s.mapError(err)
	}
	return toBools(values), nil
}

func (s *ModbusServer) HandleDiscreteInputs(req *modbus.DiscreteInputsRequest) ([]bool, error) {
	if err := s.accept(req.ClientAddr, req.UnitId, modsim.DiscreteInput, req.Addr, req.Quantity, false); err != nil {
		return nil, err
	}
	values, err := s.store.GetRange(modsim.DiscreteInput, int(req.Addr), int(req.Quantity))
	if err != nil {
		return nil, s.mapError(err)
	}
	return toBools(values), nil
}

func (s *ModbusServer) HandleHoldingRegisters(req *modbus.HoldingRegistersRequest) ([]uint16, error) {
	if err := s.accept(req.ClientAddr, req.UnitId, modsim.HoldingRegister, req.Addr, req.Quantity, req.IsWrite); err != nil {
		return nil, err
	}
	if req.IsWrite {
		if err := s.store.SetRange(modsim.HoldingRegister, int(req.Addr), req.Args); err != nil {
			return nil, s.mapError(err)
		}
		return nil, nil
	}
	values, err := s.store.GetRange(modsim.HoldingRegister, int(req.Addr), int(req.Quantity))
	if err != nil {
		return nil, s.mapError(err)
	}
	return values, nil
}

func (s *ModbusServer) HandleInputRegisters(req *modbus.InputRegistersRequest) ([]uint16, error) {
	if err := s.accept(req.ClientAddr, req.UnitId, modsim.InputRegister, req.Addr, req.Quantity, false); err != nil {
		return nil, err
	}
	values, err := s.store.GetRange(modsim.InputRegister, int(req.Addr), int(req.Quantity))
	if err != nil {
		return nil, s.mapError(err)
	}
	return values, nil
}

func (s *ModbusServer) accept(client string, unitID uint8, class modsim.RegisterClass, addr, quantity uint16, write bool) error {
	action := "read"
	if write {
		action = "write"
	}
	ts := time.Now().Format(time.DateTime)
	s.logger.Append(fmt.Sprintf("%s req: client %s unit id: %d fc: %X %s %s addr: %d qty: %d", ts, client, unitID, class.FunctionCode(), action, class, addr, quantity))

	if !s.online(unitID) {
		s.logger.Append(fmt.Sprintf("%s req: unit id: %d is offline", ts, unitID))
		return modbus.ErrGWTargetFailedToRespond
	}
	return nil
}

func (s *ModbusServer) mapError(err error) error {
	if errors.Is(err, modsim.ErrOutOfRange) {
		return modbus.ErrIllegalDataAddress
	}
	slog.Error("request failed", "err", err)
	return modbus.ErrServerDeviceFailure
}

func toBools(values []uint16) []bool {
	out := make([]bool, len(values))
	for i, v := range values {
		out[i] = v != 0
	}
	return out
}
