package modsim

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"github.com/rs/xid"
)

// AllRegisters is the address that makes Stop stop every generator.
const AllRegisters = -1

// Walk describes a bounded random walk. Values stay in [0, Range]; each tick
// moves the value by at most MaxStep in either direction and waits between
// Period/2 and 2*Period before the next tick.
type Walk struct {
	Range   uint16
	Period  time.Duration
	MaxStep uint16
}

func DefaultWalk() Walk {
	return Walk{Range: 100, Period: time.Second, MaxStep: 2}
}

func (w Walk) Validate() error {
	if w.Period <= 0 {
		return fmt.Errorf("%w: period must be positive, got %s", ErrInvalidWalk, w.Period)
	}
	// pause draws from [Period/2, 2*Period], which must fit in an int64
	if w.Period > math.MaxInt64/2 {
		return fmt.Errorf("%w: period %s too long", ErrInvalidWalk, w.Period)
	}
	return nil
}

// next clamps rather than reflects, so values stick at the bounds.
func (w Walk) next(current uint16) uint16 {
	step := int(w.MaxStep)
	v := int(current) + rand.IntN(2*step+1) - step
	return uint16(min(max(v, 0), int(w.Range)))
}

func (w Walk) seed() uint16 {
	return uint16(rand.IntN(int(w.Range) + 1))
}

func (w Walk) pause() time.Duration {
	lo := w.Period / 2
	return lo + time.Duration(rand.Int64N(int64(2*w.Period-lo)+1))
}

type generator struct {
	id     xid.ID
	walk   Walk
	cancel context.CancelFunc
}

// Simulator runs one random walk generator per holding register. Stopping a
// generator only requests cancellation; the goroutine exits after its current
// tick.
type Simulator struct {
	store *Store
	class RegisterClass

	mu         sync.Mutex
	generators map[int]*generator
	wg         sync.WaitGroup
}

func NewSimulator(store *Store) *Simulator {
	return &Simulator{
		store:      store,
		class:      HoldingRegister,
		generators: make(map[int]*generator),
	}
}

// Start seeds the register with a random value in [0, walk.Range] and starts
// its generator. Starting an already active register is a no-op.
func (s *Simulator) Start(address int, walk Walk) error {
	if !s.store.InRange(address) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, address, s.store.Size())
	}
	if err := walk.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.generators[address]; ok {
		slog.Debug("simulation already active", "register", address, "id", g.id)
		return nil
	}

	if err := s.store.Set(s.class, address, walk.seed()); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	g := &generator{id: xid.New(), walk: walk, cancel: cancel}
	s.generators[address] = g
	s.wg.Add(1)
	go s.run(ctx, address, g)

	slog.Info("simulation started", "register", address, "id", g.id,
		"range", walk.Range, "period", walk.Period, "max_step", walk.MaxStep)
	return nil
}

func (s *Simulator) run(ctx context.Context, address int, g *generator) {
	defer s.wg.Done()

	for ctx.Err() == nil {
		if _, err := s.store.Update(s.class, address, g.walk.next); err != nil {
			slog.Error("simulation tick failed", "register", address, "id", g.id, "err", err)
			return
		}

		timer := time.NewTimer(g.walk.pause())
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
	slog.Debug("simulation stopped", "register", address, "id", g.id)
}

// Stop requests the generator of address to stop. AllRegisters stops every
// generator. Stopping an inactive register is not an error.
func (s *Simulator) Stop(address int) error {
	if address == AllRegisters {
		s.StopAll()
		return nil
	}
	if !s.store.InRange(address) {
		return fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, address, s.store.Size())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.generators[address]; ok {
		g.cancel()
		delete(s.generators, address)
	}
	return nil
}

// StopAll requests every generator to stop.
func (s *Simulator) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for address, g := range s.generators {
		g.cancel()
		delete(s.generators, address)
	}
}

// Active reports whether a generator is running for address.
func (s *Simulator) Active(address int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.generators[address]
	return ok
}

// ActiveRegisters returns the addresses with a running generator in ascending order.
func (s *Simulator) ActiveRegisters() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.generators))
	for address := range s.generators {
		out = append(out, address)
	}
	slices.Sort(out)
	return out
}

// Wait blocks until all stopped generators have returned. Generators that are
// still active keep Wait blocked.
func (s *Simulator) Wait() {
	s.wg.Wait()
}
