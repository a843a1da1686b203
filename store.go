package modsim

import (
	"fmt"
	"sync"
)

// DefaultSize is the number of addresses per register class.
const DefaultSize = 100

// Store represents the register map of the simulated device. Every class
// holds the same number of 16-bit values; a single lock guards all of them.
type Store struct {
	mu    sync.Mutex
	size  int
	banks [classCount][]uint16
}

// NewStore creates a store with size addresses per class. A size <= 0 yields DefaultSize.
func NewStore(size int) *Store {
	if size <= 0 {
		size = DefaultSize
	}
	s := &Store{size: size}
	for i := range s.banks {
		s.banks[i] = make([]uint16, size)
	}
	return s
}

// Size returns the number of addresses per class.
func (s *Store) Size() int {
	return s.size
}

// Get returns the value of a single register.
func (s *Store) Get(class RegisterClass, address int) (uint16, error) {
	if err := s.check(class, address, 1); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.banks[class][address], nil
}

// Set stores value as-is. Clamping is up to the caller.
func (s *Store) Set(class RegisterClass, address int, value uint16) error {
	if err := s.check(class, address, 1); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.banks[class][address] = value
	return nil
}

// Update replaces the register value with fn(current) while holding the lock
// and returns the new value. fn must not block.
func (s *Store) Update(class RegisterClass, address int, fn func(uint16) uint16) (uint16, error) {
	if err := s.check(class, address, 1); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	v := fn(s.banks[class][address])
	s.banks[class][address] = v
	return v, nil
}

// GetRange returns a copy of quantity consecutive registers starting at address.
func (s *Store) GetRange(class RegisterClass, address, quantity int) ([]uint16, error) {
	if err := s.check(class, address, quantity); err != nil {
		return nil, err
	}
	out := make([]uint16, quantity)
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(out, s.banks[class][address:address+quantity])
	return out, nil
}

// SetRange writes values to consecutive registers starting at address. Either
// all values are written or none.
func (s *Store) SetRange(class RegisterClass, address int, values []uint16) error {
	if err := s.check(class, address, len(values)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.banks[class][address:], values)
	return nil
}

func (s *Store) check(class RegisterClass, address, quantity int) error {
	if !class.valid() {
		return fmt.Errorf("%w: %d", ErrUnknownClass, class)
	}
	if address < 0 || quantity < 1 || address+quantity > s.size {
		if quantity == 1 {
			return fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, address, s.size)
		}
		return fmt.Errorf("%w: %d+%d not in [0, %d)", ErrOutOfRange, address, quantity, s.size)
	}
	return nil
}

// InRange reports whether address is a valid register address.
func (s *Store) InRange(address int) bool {
	return address >= 0 && address < s.size
}
