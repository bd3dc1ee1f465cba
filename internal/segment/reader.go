package segment

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fxsearch/fxs/internal/types"
	"github.com/fxsearch/fxs/internal/varint"
)

// Reader memory-maps one segment's dictionaries and posting lists (C5). A
// Reader is immutable after Open; any number of goroutines may query it
// concurrently.
type Reader struct {
	segmentID types.SegmentId
	dir       string

	gramDict  []GramEntry
	tokenDict []TokenEntry

	gramPostings  mmapData
	tokenPostings mmapData

	lineMapOnce sync.Once
	lineMapErr  error
	lineMaps    map[types.DocId][]uint32
}

// Open reads the trigram and token dictionaries fully into memory and
// memory-maps both postings files. It does not load linemap.bin: that is
// deferred to the first GetLineMap call (spec.md §4.5/§9).
func Open(segPath string, segmentID types.SegmentId) (*Reader, error) {
	r := &Reader{segmentID: segmentID, dir: segPath}

	var err error
	r.gramDict, err = readGramDict(filepath.Join(segPath, GramsDict))
	if err != nil {
		return nil, fmt.Errorf("segment %d: grams.dict: %w", segmentID, err)
	}
	r.tokenDict, err = readTokenDict(filepath.Join(segPath, TokensDict))
	if err != nil {
		return nil, fmt.Errorf("segment %d: tokens.dict: %w", segmentID, err)
	}
	r.gramPostings, err = mmapFile(filepath.Join(segPath, GramsPostings))
	if err != nil {
		return nil, fmt.Errorf("segment %d: grams.postings: %w", segmentID, err)
	}
	r.tokenPostings, err = mmapFile(filepath.Join(segPath, TokensPostings))
	if err != nil {
		r.gramPostings.Close()
		return nil, fmt.Errorf("segment %d: tokens.postings: %w", segmentID, err)
	}
	return r, nil
}

// Close releases the memory-mapped regions.
func (r *Reader) Close() error {
	err1 := r.gramPostings.Close()
	err2 := r.tokenPostings.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// SegmentID returns this reader's segment id.
func (r *Reader) SegmentID() types.SegmentId { return r.segmentID }

// GetTrigramDocs binary-searches the dictionary for trigram and returns
// its decoded, delta-expanded posting list, or nil if the trigram is
// absent (including stop-grams, which are never written to the
// dictionary).
func (r *Reader) GetTrigramDocs(tg types.Trigram) []types.DocId {
	i := sort.Search(len(r.gramDict), func(i int) bool { return r.gramDict[i].Trigram >= uint32(tg) })
	if i >= len(r.gramDict) || r.gramDict[i].Trigram != uint32(tg) {
		return nil
	}
	return r.decodeGramPostings(r.gramDict[i])
}

// GetTrigramDocFreq returns the dictionary's document-frequency field
// without touching the postings region at all.
func (r *Reader) GetTrigramDocFreq(tg types.Trigram) uint32 {
	i := sort.Search(len(r.gramDict), func(i int) bool { return r.gramDict[i].Trigram >= uint32(tg) })
	if i >= len(r.gramDict) || r.gramDict[i].Trigram != uint32(tg) {
		return 0
	}
	return r.gramDict[i].DocFreq
}

// GetTokenDocs lowercases tok, binary-searches the token dictionary, and
// returns its decoded posting list.
func (r *Reader) GetTokenDocs(tok string) []types.DocId {
	tok = lowerASCIIString(tok)
	i := sort.Search(len(r.tokenDict), func(i int) bool { return r.tokenDict[i].Token >= tok })
	if i >= len(r.tokenDict) || r.tokenDict[i].Token != tok {
		return nil
	}
	e := r.tokenDict[i]
	return decodePostings(r.tokenPostings.data, e.Offset, e.Length)
}

func (r *Reader) decodeGramPostings(e GramEntry) []types.DocId {
	return decodePostings(r.gramPostings.data, e.Offset, e.Length)
}

// decodePostings safely slices [offset, offset+length) from a memory-mapped
// region. If the declared range runs past the available data — a
// truncated postings file — the whole posting list is unusable and this
// returns nil rather than decoding whatever partial bytes happen to be
// present, matching spec.md §8 fault-injection scenario 5 ("truncate
// grams.postings by 10 bytes... returns an empty bitmap").
func decodePostings(data []byte, offset uint64, length uint32) []types.DocId {
	end := offset + uint64(length)
	if offset >= uint64(len(data)) || end > uint64(len(data)) {
		return nil
	}
	u32s := varint.DecodeDeltaU32(data[offset:end])
	docs := make([]types.DocId, len(u32s))
	for i, v := range u32s {
		docs[i] = types.DocId(v)
	}
	return docs
}

// GetLineMap loads (on first call, for the whole segment) and returns the
// ascending line-start byte offsets for docID, or nil if absent. The
// one-shot initializer makes this thread-safe without a per-query lock.
func (r *Reader) GetLineMap(docID types.DocId) []uint32 {
	r.lineMapOnce.Do(func() {
		r.lineMaps, r.lineMapErr = loadLineMaps(filepath.Join(r.dir, LineMapFile))
	})
	if r.lineMapErr != nil {
		return nil
	}
	return r.lineMaps[docID]
}

func readGramDict(path string) ([]GramEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var count uint32
	if err := binary.Read(f, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	entries := make([]GramEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		var e GramEntry
		if err := binary.Read(f, binary.LittleEndian, &e.Trigram); err != nil {
			return entries, nil // truncated dictionary: return what we parsed
		}
		if err := binary.Read(f, binary.LittleEndian, &e.Offset); err != nil {
			return entries, nil
		}
		if err := binary.Read(f, binary.LittleEndian, &e.Length); err != nil {
			return entries, nil
		}
		if err := binary.Read(f, binary.LittleEndian, &e.DocFreq); err != nil {
			return entries, nil
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func readTokenDict(path string) ([]TokenEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var count uint32
	if err := binary.Read(f, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	entries := make([]TokenEntry, 0, count)
	for i := uint32(0); i < count; i++ {
		var tokLen uint16
		if err := binary.Read(f, binary.LittleEndian, &tokLen); err != nil {
			return entries, nil
		}
		tokBytes := make([]byte, tokLen)
		if _, err := io.ReadFull(f, tokBytes); err != nil {
			return entries, nil
		}
		var e TokenEntry
		e.Token = string(tokBytes)
		if err := binary.Read(f, binary.LittleEndian, &e.Offset); err != nil {
			return entries, nil
		}
		if err := binary.Read(f, binary.LittleEndian, &e.Length); err != nil {
			return entries, nil
		}
		if err := binary.Read(f, binary.LittleEndian, &e.DocFreq); err != nil {
			return entries, nil
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func loadLineMaps(path string) (map[types.DocId][]uint32, error) {
	out := make(map[types.DocId][]uint32)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil // optional file: reduced functionality, not fatal
		}
		return nil, err
	}
	defer f.Close()

	var count uint32
	if err := binary.Read(f, binary.LittleEndian, &count); err != nil {
		return out, nil
	}
	for i := uint32(0); i < count; i++ {
		var docID, lineCount, encLen uint32
		if err := binary.Read(f, binary.LittleEndian, &docID); err != nil {
			return out, nil
		}
		if err := binary.Read(f, binary.LittleEndian, &lineCount); err != nil {
			return out, nil
		}
		if err := binary.Read(f, binary.LittleEndian, &encLen); err != nil {
			return out, nil
		}
		buf := make([]byte, encLen)
		if _, err := io.ReadFull(f, buf); err != nil {
			return out, nil
		}
		out[types.DocId(docID)] = varint.DecodeDeltaU32(buf)
	}
	return out, nil
}

func lowerASCIIString(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}
