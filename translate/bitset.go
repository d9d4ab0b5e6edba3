package translate

import "math/bits"

// bitSet is a dense set of small indices: captured locals, visited blocks.
type bitSet struct {
	words []uint64
}

func newBitSet(n int) *bitSet {
	return &bitSet{words: make([]uint64, (n+63)/64)}
}

func (b *bitSet) set(i int) {
	w := i / 64
	if w >= len(b.words) {
		grown := make([]uint64, w+1)
		copy(grown, b.words)
		b.words = grown
	}
	b.words[w] |= 1 << (uint(i) % 64)
}

func (b *bitSet) has(i int) bool {
	w := i / 64
	return i >= 0 && w < len(b.words) && b.words[w]&(1<<(uint(i)%64)) != 0
}

func (b *bitSet) count() int {
	n := 0
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}
