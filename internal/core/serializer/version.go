package serializer

import (
	"github.com/blang/semver/v4"
)

// EngineVersion is the engine release stamped on every stream.
var EngineVersion = semver.MustParse("4.0.0")

// Version returns the (major, minor) pair written to stream headers.
func Version() (major, minor uint8) {
	return uint8(EngineVersion.Major), uint8(EngineVersion.Minor)
}

// Compatible reports whether a stream stamped with major.minor can be read.
// Any minor of the current or an older major is accepted; newer majors are not.
func Compatible(major, minor uint8) bool {
	stream := semver.Version{Major: uint64(major), Minor: uint64(minor)}
	return stream.Major <= EngineVersion.Major
}
