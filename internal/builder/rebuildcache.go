package builder

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/fxsearch/fxs/internal/analysis"
	"github.com/fxsearch/fxs/internal/types"
)

// rebuildCacheEntry is one row of rebuildcache.bin: enough to skip
// re-analyzing a file whose (size, mtime) are unchanged. lookup matches on
// size and mtime only; ContentHash is never compared, and
// saveRebuildCache writes it as zero.
type rebuildCacheEntry struct {
	Size        int64
	MtimeNs     uint64
	ContentHash uint64
	Trigrams    []types.Trigram
	Tokens      []string
	LineOffsets []uint32
}

// rebuildCache is advisory only: a missing cache forces full re-analysis,
// a cache cut short partway keeps the entries read before the break, and
// neither is treated as index corruption. It never touches the segment
// format. analyzeAll's workers call lookup and record concurrently, so
// both hold mu.
type rebuildCache struct {
	mu      sync.Mutex
	entries map[string]rebuildCacheEntry
	updated map[string]rebuildCacheEntry
}

func newRebuildCache() *rebuildCache {
	return &rebuildCache{entries: make(map[string]rebuildCacheEntry), updated: make(map[string]rebuildCacheEntry)}
}

func (c *rebuildCache) lookup(relPath string, size int64, mtimeNs uint64) (rebuildCacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[relPath]
	if !ok || e.Size != size || e.MtimeNs != mtimeNs {
		return rebuildCacheEntry{}, false
	}
	c.updated[relPath] = e
	return e, true
}

func (c *rebuildCache) record(relPath string, size int64, mtimeNs uint64, content []byte, res analysis.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updated[relPath] = rebuildCacheEntry{
		Size:        size,
		MtimeNs:     mtimeNs,
		ContentHash: xxhash.Sum64(content),
		Trigrams:    res.Trigrams,
		Tokens:      res.Tokens,
		LineOffsets: res.LineOffsets,
	}
}

func rebuildCachePath(indexRoot string) string {
	return filepath.Join(indexRoot, "rebuildcache.bin")
}

func loadRebuildCache(indexRoot string) (*rebuildCache, error) {
	f, err := os.Open(rebuildCachePath(indexRoot))
	if err != nil {
		return newRebuildCache(), nil
	}
	defer f.Close()

	c := newRebuildCache()
	var count uint32
	if err := binary.Read(f, binary.LittleEndian, &count); err != nil {
		return newRebuildCache(), nil
	}
	for i := uint32(0); i < count; i++ {
		var pathLen uint32
		if err := binary.Read(f, binary.LittleEndian, &pathLen); err != nil {
			return c, nil
		}
		pathBytes := make([]byte, pathLen)
		if _, err := io.ReadFull(f, pathBytes); err != nil {
			return c, nil
		}
		var e rebuildCacheEntry
		if err := binary.Read(f, binary.LittleEndian, &e.Size); err != nil {
			return c, nil
		}
		if err := binary.Read(f, binary.LittleEndian, &e.MtimeNs); err != nil {
			return c, nil
		}
		if err := binary.Read(f, binary.LittleEndian, &e.ContentHash); err != nil {
			return c, nil
		}
		var trigramCount, tokenCount, lineCount uint32
		binary.Read(f, binary.LittleEndian, &trigramCount)
		e.Trigrams = make([]types.Trigram, trigramCount)
		for j := range e.Trigrams {
			var v uint32
			binary.Read(f, binary.LittleEndian, &v)
			e.Trigrams[j] = types.Trigram(v)
		}
		binary.Read(f, binary.LittleEndian, &tokenCount)
		e.Tokens = make([]string, tokenCount)
		for j := range e.Tokens {
			var l uint16
			binary.Read(f, binary.LittleEndian, &l)
			b := make([]byte, l)
			io.ReadFull(f, b)
			e.Tokens[j] = string(b)
		}
		binary.Read(f, binary.LittleEndian, &lineCount)
		e.LineOffsets = make([]uint32, lineCount)
		for j := range e.LineOffsets {
			binary.Read(f, binary.LittleEndian, &e.LineOffsets[j])
		}
		c.entries[string(pathBytes)] = e
	}
	return c, nil
}

func saveRebuildCache(indexRoot string, processed []ProcessedFile) {
	cache := newRebuildCache()
	for _, pf := range processed {
		cache.updated[pf.RelPath] = rebuildCacheEntry{
			Size: pf.Size, MtimeNs: pf.MtimeNs,
			Trigrams: pf.Trigrams, Tokens: pf.Tokens, LineOffsets: pf.LineOffsets,
		}
	}

	f, err := os.Create(rebuildCachePath(indexRoot))
	if err != nil {
		return // advisory cache: failure to write is not a build failure
	}
	defer f.Close()

	binary.Write(f, binary.LittleEndian, uint32(len(cache.updated)))
	for path, e := range cache.updated {
		pb := []byte(path)
		binary.Write(f, binary.LittleEndian, uint32(len(pb)))
		f.Write(pb)
		binary.Write(f, binary.LittleEndian, e.Size)
		binary.Write(f, binary.LittleEndian, e.MtimeNs)
		binary.Write(f, binary.LittleEndian, e.ContentHash)
		binary.Write(f, binary.LittleEndian, uint32(len(e.Trigrams)))
		for _, tg := range e.Trigrams {
			binary.Write(f, binary.LittleEndian, uint32(tg))
		}
		binary.Write(f, binary.LittleEndian, uint32(len(e.Tokens)))
		for _, tok := range e.Tokens {
			tb := []byte(tok)
			binary.Write(f, binary.LittleEndian, uint16(len(tb)))
			f.Write(tb)
		}
		binary.Write(f, binary.LittleEndian, uint32(len(e.LineOffsets)))
		for _, off := range e.LineOffsets {
			binary.Write(f, binary.LittleEndian, off)
		}
	}
}
