package serializer

import (
	"github.com/cockroachdb/errors"
)

var (
	// ErrOpenFailed marks every error returned while opening a reader:
	// the stream could not be read or its header is malformed.
	ErrOpenFailed = errors.New("serializer: open failed")

	ErrMalformedHeader    = errors.New("serializer: malformed header")
	ErrUnsupportedVersion = errors.New("serializer: unsupported version")
	ErrChecksumMismatch   = errors.New("serializer: checksum mismatch")
	ErrCorrupt            = errors.New("serializer: corrupt stream")

	// ErrUnknownType is returned when a stream names a class that was
	// never registered with the Activator.
	ErrUnknownType = errors.New("serializer: unregistered class")

	ErrListProtocol = errors.New("serializer: list protocol violation")
	ErrTypeMismatch = errors.New("serializer: property type mismatch")
	ErrClosed       = errors.New("serializer: session closed")
)

func openFailed(err error, path string) error {
	return errors.Mark(errors.Wrapf(err, "open %q", path), ErrOpenFailed)
}
