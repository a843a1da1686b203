package modsim

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_SetGet(t *testing.T) {
	s := NewStore(0)
	require.Equal(t, DefaultSize, s.Size())

	for _, a := range []int{0, 1, 50, DefaultSize - 1} {
		require.NoError(t, s.Set(HoldingRegister, a, uint16(a*3+1)))
		v, err := s.Get(HoldingRegister, a)
		require.NoError(t, err)
		assert.Equal(t, uint16(a*3+1), v)
	}
}

func TestStore_ClassesAreIndependent(t *testing.T) {
	s := NewStore(10)
	require.NoError(t, s.Set(Coil, 4, 1))
	require.NoError(t, s.Set(InputRegister, 4, 777))

	v, err := s.Get(HoldingRegister, 4)
	require.NoError(t, err)
	assert.Zero(t, v)
	v, err = s.Get(Coil, 4)
	require.NoError(t, err)
	assert.Equal(t, uint16(1), v)
}

func TestStore_OutOfRange(t *testing.T) {
	s := NewStore(10)
	require.NoError(t, s.Set(HoldingRegister, 9, 42))

	for _, a := range []int{-1, 10, 100} {
		err := s.Set(HoldingRegister, a, 1)
		assert.ErrorIs(t, err, ErrOutOfRange, "set %d", a)
		_, err = s.Get(HoldingRegister, a)
		assert.ErrorIs(t, err, ErrOutOfRange, "get %d", a)
	}

	all, err := s.GetRange(HoldingRegister, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0, 0, 0, 0, 0, 0, 0, 0, 0, 42}, all)
}

func TestStore_UnknownClass(t *testing.T) {
	s := NewStore(10)
	_, err := s.Get(RegisterClass(9), 0)
	assert.ErrorIs(t, err, ErrUnknownClass)
}

func TestStore_Ranges(t *testing.T) {
	s := NewStore(10)
	require.NoError(t, s.SetRange(HoldingRegister, 2, []uint16{5, 6, 7}))

	got, err := s.GetRange(HoldingRegister, 1, 5)
	require.NoError(t, err)
	assert.Equal(t, []uint16{0, 5, 6, 7, 0}, got)

	err = s.SetRange(HoldingRegister, 8, []uint16{1, 2, 3})
	assert.ErrorIs(t, err, ErrOutOfRange)
	v, _ := s.Get(HoldingRegister, 8)
	assert.Zero(t, v, "a failed range write must not write a prefix")

	_, err = s.GetRange(HoldingRegister, 0, 0)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestStore_ConcurrentUpdate(t *testing.T) {
	s := NewStore(4)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				_, err := s.Update(HoldingRegister, 3, func(v uint16) uint16 { return v + 1 })
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	v, err := s.Get(HoldingRegister, 3)
	require.NoError(t, err)
	assert.Equal(t, uint16(8000), v)
}
