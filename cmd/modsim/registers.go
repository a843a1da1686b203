package main

import (
	"fmt"
	"strconv"
	"strings"
)

// parseRegisters parses lists like "0,3,10-14" into addresses.
func parseRegisters(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		from, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("register list %q: %w", s, err)
		}
		to := from
		if isRange {
			if to, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
				return nil, fmt.Errorf("register list %q: %w", s, err)
			}
			if to < from {
				return nil, fmt.Errorf("register list %q: range %d-%d is descending", s, from, to)
			}
		}
		for a := from; a <= to; a++ {
			out = append(out, a)
		}
	}
	return out, nil
}
