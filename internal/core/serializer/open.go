package serializer

import (
	"bytes"
	"io"

	"github.com/cockroachdb/errors"

	"github.com/gpengine/gameplay/internal/core/filesystem"
)

// OpenReader opens path on fsys and picks the format from the first bytes
// of the stream: the binary magic selects the binary reader, anything else
// is parsed as JSON. The stream stays open until the reader is closed.
func OpenReader(fsys *filesystem.FileSystem, path string, act *Activator) (Reader, error) {
	stream, err := fsys.Open(path, filesystem.AccessRead)
	if err != nil {
		return nil, openFailed(err, path)
	}
	data, err := io.ReadAll(stream)
	if err != nil {
		_ = stream.Close()
		return nil, openFailed(errors.Wrap(err, "read"), path)
	}

	var r Reader
	if bytes.HasPrefix(data, binaryMagic[:]) {
		r, err = NewBinaryReader(path, data, act)
	} else {
		r, err = NewJSONReader(path, data, act)
	}
	if err != nil {
		_ = stream.Close()
		return nil, err
	}
	r.(*reader).closer = stream
	return r, nil
}

// CreateWriter creates (or truncates) path on fsys and starts a write
// session in the given format.
func CreateWriter(fsys *filesystem.FileSystem, path string, format Format, act *Activator) (Writer, error) {
	stream, err := fsys.Create(path)
	if err != nil {
		return nil, openFailed(err, path)
	}
	switch format {
	case FormatBinary:
		return NewBinaryWriter(path, stream), nil
	case FormatJSON:
		return NewJSONWriter(path, stream, act), nil
	default:
		_ = stream.Close()
		return nil, openFailed(errors.Newf("unknown format %d", format), path)
	}
}
