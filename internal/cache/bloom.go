package cache

import (
	"hash/fnv"
)

// BloomFilter is a probabilistic set-membership structure. The ingestion
// engine uses one to count dedupe keys it has definitely not seen before; a
// positive test only means "maybe seen before" and is never a substitute for
// the store's own unique dedupe_key index, which still runs on every write.
//
// No false negatives, possible false positives, O(1) Add/Test, no deletion.
type BloomFilter struct {
	bits     []uint64
	size     uint64
	hashFns  int
	count    int
	capacity int
}

// NewBloomFilter sizes a filter for expectedItems entries at the given
// target false positive rate using the standard m/n, k formulas.
func NewBloomFilter(expectedItems int, falsePositiveRate float64) *BloomFilter {
	if expectedItems <= 0 {
		expectedItems = 10000
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}

	const ln2 = 0.6931471805599453
	lnP := approximateLn(falsePositiveRate)

	m := int(-float64(expectedItems) * lnP / (ln2 * ln2))
	if m < 64 {
		m = 64
	}
	k := int(float64(m) / float64(expectedItems) * ln2)
	if k < 1 {
		k = 1
	}
	if k > 10 {
		k = 10
	}

	words := (m + 63) / 64
	return &BloomFilter{
		bits:     make([]uint64, words),
		size:     uint64(words * 64),
		hashFns:  k,
		capacity: expectedItems,
	}
}

// Add records key as present.
func (bf *BloomFilter) Add(key string) {
	for _, h := range bf.getHashes(key) {
		idx := h % bf.size
		bf.bits[idx/64] |= 1 << (idx % 64)
	}
	bf.count++
}

// Test reports whether key might have been added. false is authoritative;
// true requires confirmation against the real source of truth.
func (bf *BloomFilter) Test(key string) bool {
	for _, h := range bf.getHashes(key) {
		idx := h % bf.size
		if bf.bits[idx/64]&(1<<(idx%64)) == 0 {
			return false
		}
	}
	return true
}

// Count returns the number of Add calls made (not distinct items).
func (bf *BloomFilter) Count() int {
	return bf.count
}

// getHashes derives bf.hashFns indices from a single pair of FNV hashes via
// double hashing (Kirsch-Mitzenmacher), avoiding k independent hash functions.
func (bf *BloomFilter) getHashes(key string) []uint64 {
	h1 := fnv.New64a()
	h1.Write([]byte(key))
	hash1 := h1.Sum64()

	h2 := fnv.New64()
	h2.Write([]byte(key))
	h2.Write([]byte{0xff})
	hash2 := h2.Sum64()

	hashes := make([]uint64, bf.hashFns)
	for i := 0; i < bf.hashFns; i++ {
		hashes[i] = hash1 + uint64(i)*hash2
	}
	return hashes
}

// approximateLn computes a natural log approximation good enough for bloom
// filter sizing, where x is always a small false-positive-rate constant.
func approximateLn(x float64) float64 {
	if x <= 0 {
		return 0
	}
	// ln(x) = ln(x / e^k) + k, shift x into (0.5, 1.5] where the series converges fast.
	k := 0.0
	for x > 1.5 {
		x /= 2.718281828459045
		k++
	}
	for x < 0.5 {
		x *= 2.718281828459045
		k--
	}
	y := (x - 1) / (x + 1)
	y2 := y * y
	term := y
	sum := 0.0
	for i := 0; i < 20; i++ {
		sum += term / float64(2*i+1)
		term *= y2
	}
	return 2*sum + k
}

// DedupeFilter wraps a BloomFilter with the ingestion engine's pre-check
// semantics: MaybeSeen consults the filter only, Observe records a key as
// seen. The engine observes each key before its store write, so a key is
// recorded even when that write fails.
type DedupeFilter struct {
	bloom *BloomFilter
}

// NewDedupeFilter builds a DedupeFilter sized for expectedItems keys.
func NewDedupeFilter(expectedItems int) *DedupeFilter {
	return &DedupeFilter{bloom: NewBloomFilter(expectedItems, 0.01)}
}

// MaybeSeen returns false only when key is definitely new.
func (d *DedupeFilter) MaybeSeen(key string) bool {
	if d == nil || d.bloom == nil {
		return true
	}
	return d.bloom.Test(key)
}

// Observe records key as seen.
func (d *DedupeFilter) Observe(key string) {
	if d == nil || d.bloom == nil {
		return
	}
	d.bloom.Add(key)
}
