// Package bitmap implements the compact doc-id set used for narrowing-phase
// set algebra. The on-disk posting format is fixed (varint-delta lists);
// spec.md §9 explicitly leaves the in-memory candidate representation free
// to vary, so this is a plain word-packed bitset rather than the on-disk
// encoding.
package bitmap

import (
	"math/bits"
	"sort"

	"github.com/fxsearch/fxs/internal/types"
)

const wordBits = 64

// Bitmap is a sparse-friendly set of DocId values.
type Bitmap struct {
	words []uint64
}

func New() *Bitmap { return &Bitmap{} }

// FromSlice builds a Bitmap from an unordered doc-id slice (as returned by
// a posting-list decode).
func FromSlice(docs []types.DocId) *Bitmap {
	b := New()
	for _, d := range docs {
		b.Add(d)
	}
	return b
}

func (b *Bitmap) ensure(word int) {
	if word >= len(b.words) {
		grown := make([]uint64, word+1)
		copy(grown, b.words)
		b.words = grown
	}
}

func (b *Bitmap) Add(d types.DocId) {
	word, bit := int(d)/wordBits, uint(int(d)%wordBits)
	b.ensure(word)
	b.words[word] |= 1 << bit
}

func (b *Bitmap) Remove(d types.DocId) {
	word, bit := int(d)/wordBits, uint(int(d)%wordBits)
	if word < len(b.words) {
		b.words[word] &^= 1 << bit
	}
}

func (b *Bitmap) Contains(d types.DocId) bool {
	word, bit := int(d)/wordBits, uint(int(d)%wordBits)
	if word >= len(b.words) {
		return false
	}
	return b.words[word]&(1<<bit) != 0
}

func (b *Bitmap) Count() int {
	n := 0
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// ToSlice returns ascending doc-ids (ascending order is guaranteed by
// iterating words and bits low to high).
func (b *Bitmap) ToSlice() []types.DocId {
	out := make([]types.DocId, 0, b.Count())
	for wi, w := range b.words {
		for w != 0 {
			tz := bits.TrailingZeros64(w)
			out = append(out, types.DocId(wi*wordBits+tz))
			w &= w - 1
		}
	}
	return out
}

// Union returns a new Bitmap containing every doc-id in any input.
func Union(maps ...*Bitmap) *Bitmap {
	out := New()
	maxLen := 0
	for _, m := range maps {
		if len(m.words) > maxLen {
			maxLen = len(m.words)
		}
	}
	out.words = make([]uint64, maxLen)
	for _, m := range maps {
		for i, w := range m.words {
			out.words[i] |= w
		}
	}
	return out
}

// Intersect returns a new Bitmap containing only doc-ids present in every
// input. Callers should sort inputs by population ascending first (the
// executor's narrowing phase does this) since this still performs
// word-wise AND across the full range regardless of order.
func Intersect(maps ...*Bitmap) *Bitmap {
	if len(maps) == 0 {
		return New()
	}
	minLen := len(maps[0].words)
	for _, m := range maps[1:] {
		if len(m.words) < minLen {
			minLen = len(m.words)
		}
	}
	out := New()
	out.words = make([]uint64, minLen)
	for i := 0; i < minLen; i++ {
		w := maps[0].words[i]
		for _, m := range maps[1:] {
			w &= m.words[i]
		}
		out.words[i] = w
	}
	return out
}

// Exclude returns a new Bitmap with every doc-id in remove cleared from base.
func Exclude(base, remove *Bitmap) *Bitmap {
	out := New()
	out.words = append([]uint64(nil), base.words...)
	for i, w := range remove.words {
		if i >= len(out.words) {
			break
		}
		out.words[i] &^= w
	}
	return out
}

// SortByPopulationAscending orders maps smallest-first, the only ordering
// TrigramIntersect requires (spec.md §4.10.1).
func SortByPopulationAscending(maps []*Bitmap) {
	sort.Slice(maps, func(i, j int) bool { return maps[i].Count() < maps[j].Count() })
}
