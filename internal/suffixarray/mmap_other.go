//go:build !unix

package suffixarray

import "os"

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
