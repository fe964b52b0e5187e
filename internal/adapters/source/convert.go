package source

import (
	"math"
	"strconv"
	"strings"
)

// number parses a numeric cell. Blank or malformed cells yield NaN.
func number(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// optionalNumber returns nil for blank or malformed cells.
func optionalNumber(s string) *float64 {
	f := number(s)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// optionalInt returns nil unless the cell holds an integral number.
func optionalInt(s string) *int {
	f := optionalNumber(s)
	if f == nil || *f != math.Trunc(*f) {
		return nil
	}
	i := int(*f)
	return &i
}
