package compute

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrReleased      = errors.New("compute: buffer or kernel already released")
	ErrBufferType    = errors.New("compute: buffer element type mismatch")
	ErrBufferSize    = errors.New("compute: buffer size mismatch")
	ErrArgument      = errors.New("compute: invalid kernel argument")
	ErrForeignBuffer = errors.New("compute: buffer belongs to another device")
)

// BuildError reports a kernel program that failed to compile or link.
// It carries the offending source and the backend's diagnostic log.
type BuildError struct {
	Device string
	Entry  string
	Source string
	Log    string
}

func (e *BuildError) Error() string {
	log := strings.TrimSpace(e.Log)
	if i := strings.IndexByte(log, '\n'); i >= 0 {
		log = log[:i]
	}
	return fmt.Sprintf("compute: %s: build of %q failed: %s", e.Device, e.Entry, log)
}
