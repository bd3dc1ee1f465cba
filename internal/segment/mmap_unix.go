//go:build unix

package segment

import (
	"os"

	"golang.org/x/sys/unix"
)

// mmapData is a read-only memory-mapped region backing one postings file.
// Its lifetime is the owning segment reader's lifetime (see DESIGN.md
// ownership notes).
type mmapData struct {
	f    *os.File
	data []byte
}

func mmapFile(path string) (mmapData, error) {
	f, err := os.Open(path)
	if err != nil {
		return mmapData{}, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return mmapData{}, err
	}
	size := st.Size()
	if size == 0 {
		return mmapData{f: f, data: nil}, nil
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return mmapData{}, err
	}
	return mmapData{f: f, data: data}, nil
}

func (m mmapData) Close() error {
	if m.data != nil {
		if err := unix.Munmap(m.data); err != nil {
			m.f.Close()
			return err
		}
	}
	return m.f.Close()
}
