package console

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rwirdemann/modsim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestConsole(display DisplayFunc) (*Console, *modsim.Store, *modsim.Simulator) {
	store := modsim.NewStore(10)
	sim := modsim.NewSimulator(store)
	return New(store, sim, display), store, sim
}

func run(t *testing.T, c *Console, input string) string {
	t.Helper()
	var out bytes.Buffer
	c.Start(context.Background(), strings.NewReader(input), &out)
	return out.String()
}

func TestConsole_SetGet(t *testing.T) {
	c, store, _ := newTestConsole(nil)
	out := run(t, c, "set 4 321\nget 4\n")

	assert.Contains(t, out, "r4 = 321")
	v, err := store.Get(modsim.HoldingRegister, 4)
	require.NoError(t, err)
	assert.Equal(t, uint16(321), v)

	// a single set writes exactly one register
	v, err = store.Get(modsim.HoldingRegister, 5)
	require.NoError(t, err)
	assert.Zero(t, v)
}

func TestConsole_Errors(t *testing.T) {
	c, _, _ := newTestConsole(nil)
	out := run(t, c, "set 40 1\nget -1\nset 1 70000\nfrobnicate\nget\ndisplay\n")

	assert.Equal(t, 6, strings.Count(out, "error:"), out)
	assert.Contains(t, out, modsim.ErrOutOfRange.Error())
	assert.Contains(t, out, `unknown command "frobnicate"`)
	assert.Contains(t, out, "display not available")
}

func TestConsole_StartRejectsHugePeriod(t *testing.T) {
	c, _, sim := newTestConsole(nil)
	out := run(t, c, "start 1 100 2000000h\nactive\n")

	assert.Contains(t, out, "error: "+modsim.ErrInvalidWalk.Error())
	assert.Contains(t, out, "active: []")
	assert.False(t, sim.Active(1))
}

func TestConsole_StartStop(t *testing.T) {
	c, store, sim := newTestConsole(nil)
	defer func() {
		sim.StopAll()
		sim.Wait()
	}()

	out := run(t, c, "start 3 50 10ms 5\nstart 4 20 0.01\nactive\n")
	assert.Contains(t, out, "simulating r3 in [0, 50]")
	assert.Contains(t, out, "active: [3 4]")

	time.Sleep(50 * time.Millisecond)
	v, err := store.Get(modsim.HoldingRegister, 3)
	require.NoError(t, err)
	assert.LessOrEqual(t, v, uint16(50))

	out = run(t, c, "stop 3\nactive\nstop all\nactive\nstop 11\n")
	assert.Contains(t, out, "stopped r3")
	assert.Contains(t, out, "active: [4]")
	assert.Contains(t, out, "active: []")
	assert.Contains(t, out, "error: "+modsim.ErrOutOfRange.Error())
	assert.False(t, sim.Active(4))
}

func TestConsole_Display(t *testing.T) {
	var got []int
	display := func(_ context.Context, addresses []int) error {
		got = addresses
		return nil
	}
	c, _, _ := newTestConsole(display)
	out := run(t, c, "display 1 2 3\n")
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Contains(t, out, "Stopped.")

	run(t, c, "display\n")
	assert.Empty(t, got)
}

func TestConsole_Quit(t *testing.T) {
	c, store, _ := newTestConsole(nil)
	out := run(t, c, "help\nquit\nset 1 5\n")
	assert.Contains(t, out, "Commands:")
	assert.Contains(t, out, "Goodbye!")
	v, _ := store.Get(modsim.HoldingRegister, 1)
	assert.Zero(t, v, "commands after quit are not executed")
}

func TestParsePeriod(t *testing.T) {
	d, err := parsePeriod("250ms")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	d, err = parsePeriod("1.5")
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)

	_, err = parsePeriod("soon")
	assert.Error(t, err)
}
