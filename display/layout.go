package display

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rwirdemann/modsim"
)

const (
	// Columns is the number of registers shown per row.
	Columns = 5

	// DefaultSelectionSize is the number of registers shown when the
	// selection is empty.
	DefaultSelectionSize = 98

	valueWidth = 5
)

var (
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	valueStyle = lipgloss.NewStyle().Width(valueWidth).Align(lipgloss.Center)
)

// Selection validates addresses against a store of size registers. An empty
// selection yields the first DefaultSelectionSize addresses.
func Selection(size int, addresses []int) ([]int, error) {
	if len(addresses) == 0 {
		n := min(DefaultSelectionSize, size)
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out, nil
	}

	out := make([]int, len(addresses))
	for i, a := range addresses {
		if a < 0 || a >= size {
			return nil, fmt.Errorf("%w: register %d not in [0, %d)", modsim.ErrInvalidSelection, a, size)
		}
		out[i] = a
	}
	return out, nil
}

// rowsPerPage leaves one line for the help view.
func rowsPerPage(height int) int {
	return max(height-1, 1)
}

func perPage(height int) int {
	return rowsPerPage(height) * Columns
}

func pageCount(n, height int) int {
	p := perPage(height)
	return max((n+p-1)/p, 1)
}

// pageBounds returns the half-open index range of addresses shown on page.
func pageBounds(n, height, page int) (int, int) {
	p := perPage(height)
	start := min(page*p, n)
	return start, min(start+p, n)
}

func renderCell(address int, value uint16, err error) string {
	v := fmt.Sprint(value)
	if err != nil {
		v = "?"
	}
	return labelStyle.Render(fmt.Sprintf("r%-2d:", address)) + " " + valueStyle.Render(v)
}

// renderPage renders one page of the grid. Pages shorter than the viewport are
// padded with empty lines so rows of a previous, longer page are overwritten.
func renderPage(r Reader, addresses []int, height, page int) []string {
	start, end := pageBounds(len(addresses), height, page)
	rows := rowsPerPage(height)
	lines := make([]string, 0, rows)

	var b strings.Builder
	for i := start; i < end; i += Columns {
		b.Reset()
		for j := i; j < min(i+Columns, end); j++ {
			if j > i {
				b.WriteString(" ")
			}
			v, err := r.Get(modsim.HoldingRegister, addresses[j])
			b.WriteString(renderCell(addresses[j], v, err))
		}
		lines = append(lines, b.String())
	}
	for len(lines) < rows {
		lines = append(lines, "")
	}
	return lines
}
