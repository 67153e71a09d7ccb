package catalog

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// Dedup remembers SKUs across feeds. The Bloom filter answers most lookups
// for unseen SKUs; a positive is confirmed against the exact set so false
// positives never drop a product.
type Dedup struct {
	mu       sync.Mutex
	filter   *bloom.BloomFilter
	seen     map[string]struct{}
	falsePos int
}

// NewDedup sizes the filter for about expected SKUs at the given false
// positive rate.
func NewDedup(expected uint, fpr float64) *Dedup {
	return &Dedup{
		filter: bloom.NewWithEstimates(expected, fpr),
		seen:   make(map[string]struct{}, expected),
	}
}

// First reports whether sku has not been offered before and records it.
func (d *Dedup) First(sku string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.filter.TestString(sku) {
		if _, ok := d.seen[sku]; ok {
			return false
		}
		d.falsePos++
	}
	d.filter.AddString(sku)
	d.seen[sku] = struct{}{}
	return true
}

// FalsePositives returns the number of filter hits not confirmed by the
// exact set.
func (d *Dedup) FalsePositives() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.falsePos
}
