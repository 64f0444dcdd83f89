package filesystem

import (
	"io"

	"github.com/cockroachdb/errors"
	"github.com/hack-pad/hackpadfs"
)

// Stream is a byte stream on an opened file.
type Stream interface {
	io.Reader
	io.Writer
	io.Seeker
	io.Closer

	CanRead() bool
	CanWrite() bool
	CanSeek() bool
	// Length returns the current size of the file.
	Length() int64
	// Position returns the current read/write offset.
	Position() int64
}

type fileStream struct {
	file hackpadfs.File
	mode AccessMode
	pos  int64
}

var _ Stream = (*fileStream)(nil)

func (s *fileStream) CanRead() bool  { return s.mode&AccessRead != 0 }
func (s *fileStream) CanWrite() bool { return s.mode&AccessWrite != 0 }

func (s *fileStream) CanSeek() bool {
	_, ok := s.file.(io.Seeker)
	return ok
}

func (s *fileStream) Read(p []byte) (int, error) {
	if !s.CanRead() {
		return 0, errors.Wrap(ErrUnsupportedAccess, "stream not opened for reading")
	}
	n, err := s.file.Read(p)
	s.pos += int64(n)
	return n, err
}

func (s *fileStream) Write(p []byte) (int, error) {
	if !s.CanWrite() {
		return 0, errors.Wrap(ErrUnsupportedAccess, "stream not opened for writing")
	}
	w, ok := s.file.(io.Writer)
	if !ok {
		return 0, errors.Wrap(ErrUnsupportedAccess, "file does not support writing")
	}
	n, err := w.Write(p)
	s.pos += int64(n)
	return n, err
}

func (s *fileStream) Seek(offset int64, whence int) (int64, error) {
	seeker, ok := s.file.(io.Seeker)
	if !ok {
		return s.pos, errors.Wrap(ErrUnsupportedAccess, "file does not support seeking")
	}
	pos, err := seeker.Seek(offset, whence)
	if err != nil {
		return s.pos, err
	}
	s.pos = pos
	return pos, nil
}

func (s *fileStream) Length() int64 {
	info, err := s.file.Stat()
	if err != nil {
		return 0
	}
	return info.Size()
}

func (s *fileStream) Position() int64 { return s.pos }

func (s *fileStream) Close() error {
	return s.file.Close()
}
