package serializer

import (
	"io"

	"github.com/cockroachdb/errors"
)

type session struct {
	path    string
	format  Format
	version [2]uint8
	closer  io.Closer
	closed  bool
	err     error
}

func (s *session) Path() string        { return s.path }
func (s *session) Format() Format      { return s.format }
func (s *session) VersionMajor() uint8 { return s.version[0] }
func (s *session) VersionMinor() uint8 { return s.version[1] }
func (s *session) Err() error          { return s.err }

// fail records the first error of the session.
func (s *session) fail(err error) {
	if s.err == nil && err != nil {
		s.err = err
	}
}

func (s *session) failf(mark error, format string, args ...any) {
	s.fail(errors.Mark(errors.Newf(format, args...), mark))
}

// release closes the underlying stream exactly once.
func (s *session) release() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}
