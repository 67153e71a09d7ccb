// Package ident generates zero-padded sequential identifiers such as product
// SKUs ("001", "002") and customer IDs.
//
// Next is the pure scan-and-increment rule. It is not safe on its own under
// concurrent callers: stores implement Sequence with an atomic counter and use
// Max only to keep that counter ahead of identifiers inserted by hand.
package ident

import (
	"context"
	"strconv"
	"strings"
)

// DefaultWidth is the zero-padding width used when none is configured.
const DefaultWidth = 3

// Entity classes with their own counters.
const (
	Product  = "product"
	Customer = "customer"
	Invoice  = "invoice"
)

// Sequence hands out strictly increasing numbers per entity class. Values are
// never reused; gaps are allowed when a transaction that drew a value rolls
// back.
type Sequence interface {
	Next(ctx context.Context, entity string) (int64, error)
}

// Format renders n zero-padded to width digits.
func Format(n int64, width int) string {
	if width <= 0 {
		width = DefaultWidth
	}
	s := strconv.FormatInt(n, 10)
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

// Max returns the largest numeric value among existing identifiers after
// stripping leading zeros. Non-numeric identifiers are ignored. It returns 0
// when none are numeric.
func Max(existing []string) int64 {
	var highest int64
	for _, id := range existing {
		digits := strings.TrimLeft(strings.TrimSpace(id), "0")
		if digits == "" {
			// "000" and "" both parse as zero.
			continue
		}
		n, err := strconv.ParseInt(digits, 10, 64)
		if err != nil || n < 0 {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return highest
}

// Next returns the identifier following the maximum of existing, padded to
// width. With no numeric identifiers it returns the padded value 1.
func Next(existing []string, width int) string {
	return Format(Max(existing)+1, width)
}
