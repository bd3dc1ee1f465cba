// Package doctable reads and rewrites the index-wide docs.bin and
// paths.bin tables (spec.md §6.1), shared by the index reader (read-only)
// and the builder's incremental delta path (read-modify-write for
// tombstoning and appending new documents).
package doctable

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"

	"github.com/fxsearch/fxs/internal/types"
)

// ReadDocs loads every Document record from docs.bin, in file order
// (ascending doc-id, since that is assignment order).
func ReadDocs(indexRoot string) ([]types.Document, error) {
	f, err := os.Open(filepath.Join(indexRoot, "docs.bin"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var count uint32
	if err := binary.Read(f, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	docs := make([]types.Document, 0, count)
	for i := uint32(0); i < count; i++ {
		var d types.Document
		var lang, flags, seg uint16
		if err := binary.Read(f, binary.LittleEndian, &d.DocId); err != nil {
			return docs, nil
		}
		if err := binary.Read(f, binary.LittleEndian, &d.PathId); err != nil {
			return docs, nil
		}
		if err := binary.Read(f, binary.LittleEndian, &d.Size); err != nil {
			return docs, nil
		}
		if err := binary.Read(f, binary.LittleEndian, &d.MtimeNs); err != nil {
			return docs, nil
		}
		if err := binary.Read(f, binary.LittleEndian, &lang); err != nil {
			return docs, nil
		}
		if err := binary.Read(f, binary.LittleEndian, &flags); err != nil {
			return docs, nil
		}
		if err := binary.Read(f, binary.LittleEndian, &seg); err != nil {
			return docs, nil
		}
		d.Language = types.NormalizeLanguage(lang)
		d.Flags = types.DocFlags(flags)
		d.SegmentId = types.SegmentId(seg)
		docs = append(docs, d)
	}
	return docs, nil
}

// WriteDocs rewrites docs.bin in full. Used after tombstoning or merging
// in a delta segment's new documents.
func WriteDocs(indexRoot string, docs []types.Document) error {
	path := filepath.Join(indexRoot, "docs.bin")
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, uint32(len(docs))); err != nil {
		return err
	}
	for _, d := range docs {
		fields := []any{d.DocId, d.PathId, d.Size, d.MtimeNs, uint16(d.Language), uint16(d.Flags), uint16(d.SegmentId)}
		for _, v := range fields {
			if err := binary.Write(f, binary.LittleEndian, v); err != nil {
				return err
			}
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadPaths loads the path table in path-id order.
func ReadPaths(indexRoot string) ([]string, error) {
	f, err := os.Open(filepath.Join(indexRoot, "paths.bin"))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var count uint32
	if err := binary.Read(f, binary.LittleEndian, &count); err != nil {
		return nil, err
	}
	paths := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		var n uint32
		if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
			return paths, nil
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(f, b); err != nil {
			return paths, nil
		}
		paths = append(paths, string(b))
	}
	return paths, nil
}

// WritePaths rewrites paths.bin in full.
func WritePaths(indexRoot string, paths []string) error {
	path := filepath.Join(indexRoot, "paths.bin")
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, uint32(len(paths))); err != nil {
		return err
	}
	for _, p := range paths {
		b := []byte(p)
		if err := binary.Write(f, binary.LittleEndian, uint32(len(b))); err != nil {
			return err
		}
		if _, err := f.Write(b); err != nil {
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
