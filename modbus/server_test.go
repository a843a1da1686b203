package modbus

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rwirdemann/modsim"
	"github.com/simonvetter/modbus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu    sync.Mutex
	items []string
}

func (l *recordingLogger) Append(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, text)
}

func (l *recordingLogger) contains(s string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, item := range l.items {
		if strings.Contains(item, s) {
			return true
		}
	}
	return false
}

func freeURL(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())
	return fmt.Sprintf("tcp://%s", addr)
}

func TestHandleHoldingRegisters(t *testing.T) {
	store := modsim.NewStore(10)
	logger := &recordingLogger{}
	s := NewModbusServer("tcp://127.0.0.1:0", store, modsim.DefaultIdentity(), logger)
	assert.Equal(t, modsim.DefaultIdentity(), s.Identity())

	_, err := s.HandleHoldingRegisters(&modbus.HoldingRegistersRequest{
		UnitId: 1, Addr: 2, Quantity: 2, IsWrite: true, Args: []uint16{11, 12},
	})
	require.NoError(t, err)

	values, err := s.HandleHoldingRegisters(&modbus.HoldingRegistersRequest{UnitId: 1, Addr: 1, Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, []uint16{0, 11, 12}, values)
	assert.True(t, logger.contains("unit id: 1 fc: 3 write holding addr: 2 qty: 2"))

	_, err = s.HandleHoldingRegisters(&modbus.HoldingRegistersRequest{UnitId: 1, Addr: 9, Quantity: 2})
	assert.ErrorIs(t, err, modbus.ErrIllegalDataAddress)
}

func TestHandleCoilsAndInputs(t *testing.T) {
	store := modsim.NewStore(10)
	require.NoError(t, store.Set(modsim.DiscreteInput, 0, 1))
	require.NoError(t, store.Set(modsim.InputRegister, 5, 99))
	s := NewModbusServer("tcp://127.0.0.1:0", store, modsim.DefaultIdentity(), &recordingLogger{})

	_, err := s.HandleCoils(&modbus.CoilsRequest{Addr: 3, Quantity: 2, IsWrite: true, Args: []bool{true, false}})
	require.NoError(t, err)
	v, _ := store.Get(modsim.Coil, 3)
	assert.Equal(t, uint16(1), v)

	coils, err := s.HandleCoils(&modbus.CoilsRequest{Addr: 2, Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, []bool{false, true, false}, coils)

	inputs, err := s.HandleDiscreteInputs(&modbus.DiscreteInputsRequest{Addr: 0, Quantity: 2})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false}, inputs)

	regs, err := s.HandleInputRegisters(&modbus.InputRegistersRequest{Addr: 5, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, []uint16{99}, regs)

	_, err = s.HandleInputRegisters(&modbus.InputRegistersRequest{Addr: 10, Quantity: 1})
	assert.ErrorIs(t, err, modbus.ErrIllegalDataAddress)
}

func TestDisconnectedUnit(t *testing.T) {
	logger := &recordingLogger{}
	s := NewModbusServer("tcp://127.0.0.1:0", modsim.NewStore(10), modsim.DefaultIdentity(), logger)

	s.Disconnect(7)
	_, err := s.HandleHoldingRegisters(&modbus.HoldingRegistersRequest{UnitId: 7, Addr: 0, Quantity: 1})
	assert.ErrorIs(t, err, modbus.ErrGWTargetFailedToRespond)
	assert.True(t, logger.contains("unit id: 7 is offline"))

	_, err = s.HandleHoldingRegisters(&modbus.HoldingRegistersRequest{UnitId: 1, Addr: 0, Quantity: 1})
	assert.NoError(t, err)

	s.Connect(7)
	_, err = s.HandleHoldingRegisters(&modbus.HoldingRegistersRequest{UnitId: 7, Addr: 0, Quantity: 1})
	assert.NoError(t, err)
}

func TestServerRoundTrip(t *testing.T) {
	url := freeURL(t)
	store := modsim.NewStore(20)
	logger := &recordingLogger{}
	s := NewModbusServer(url, store, modsim.DefaultIdentity(), logger, WithTimeout(5*time.Second), WithMaxClients(2))
	require.NoError(t, s.Start())
	defer s.Stop()
	assert.True(t, logger.contains("serving 20 registers"))

	a, err := NewAdapter(url, time.Second, 1)
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.WriteRegister(modsim.HoldingRegister, 4, 1234))
	v, err := store.Get(modsim.HoldingRegister, 4)
	require.NoError(t, err)
	assert.Equal(t, uint16(1234), v)

	require.NoError(t, store.Set(modsim.HoldingRegister, 5, 77))
	values, err := a.ReadRegisters(modsim.HoldingRegister, 4, 2)
	require.NoError(t, err)
	assert.Equal(t, []uint16{1234, 77}, values)

	require.NoError(t, a.WriteRegister(modsim.Coil, 1, 1))
	coils, err := a.ReadRegisters(modsim.Coil, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0, 1, 0}, coils)

	_, err = a.ReadRegisters(modsim.HoldingRegister, 19, 2)
	assert.ErrorIs(t, err, modbus.ErrIllegalDataAddress)

	assert.ErrorIs(t, a.WriteRegister(modsim.InputRegister, 0, 1), ErrReadOnly)

	rr := a.ReadRegister([]modsim.Register{
		{UnitID: 1, Class: modsim.HoldingRegister, Address: 5},
		{UnitID: 1, Class: modsim.HoldingRegister, Address: 50},
	})
	require.Len(t, rr, 1)
	assert.Equal(t, uint16(77), rr[0].Value)
}

func TestServerServesSimulatedRegisters(t *testing.T) {
	url := freeURL(t)
	store := modsim.NewStore(10)
	sim := modsim.NewSimulator(store)
	s := NewModbusServer(url, store, modsim.DefaultIdentity(), &recordingLogger{})
	require.NoError(t, s.Start())
	defer s.Stop()

	require.NoError(t, sim.Start(3, modsim.Walk{Range: 50, Period: 5 * time.Millisecond, MaxStep: 5}))
	defer func() {
		sim.StopAll()
		sim.Wait()
	}()

	a, err := NewAdapter(url, time.Second, 1)
	require.NoError(t, err)
	defer a.Close()

	for range 20 {
		values, err := a.ReadRegisters(modsim.HoldingRegister, 3, 1)
		require.NoError(t, err)
		require.LessOrEqual(t, values[0], uint16(50))
		time.Sleep(5 * time.Millisecond)
	}
}
