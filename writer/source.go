package writer

import (
	"bytes"

	"github.com/xitongsys/parquet-go/source"
)

// memoryFile implements the ParquetFile interface for in-memory writing.
// Files are fully assembled in memory and only hit disk once complete, so
// no partial parquet file is ever visible on disk.
type memoryFile struct {
	buffer *bytes.Buffer
}

func newMemoryFile() *memoryFile {
	return &memoryFile{buffer: &bytes.Buffer{}}
}

func (mf *memoryFile) Create(name string) (source.ParquetFile, error) {
	return mf, nil
}

func (mf *memoryFile) Open(name string) (source.ParquetFile, error) {
	return mf, nil
}

func (mf *memoryFile) Seek(offset int64, whence int) (int64, error) {
	// Writing is append-only, no seeking required.
	return int64(mf.buffer.Len()), nil
}

func (mf *memoryFile) Read(b []byte) (int, error) {
	return mf.buffer.Read(b)
}

func (mf *memoryFile) Write(b []byte) (int, error) {
	return mf.buffer.Write(b)
}

func (mf *memoryFile) Close() error {
	return nil
}

func (mf *memoryFile) Bytes() []byte {
	return mf.buffer.Bytes()
}
