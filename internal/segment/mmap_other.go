//go:build !unix

package segment

import "os"

// mmapData falls back to a plain read on platforms without a POSIX mmap
// (e.g. Windows). The postings files are read-only and rarely exceed a
// few hundred MiB per segment, so holding the bytes in the process heap
// is an acceptable fallback outside the primary unix target.
type mmapData struct {
	data []byte
}

func mmapFile(path string) (mmapData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return mmapData{}, err
	}
	return mmapData{data: data}, nil
}

func (m mmapData) Close() error { return nil }
