package stream

import (
	"fmt"
	"os"
)

// FileBacking is a Backing implementation over a regular file, modeled on
// the teacher's segmentmanager.diskSegmentManager: options configure it at
// construction, and every mutating call is guarded by an explicit writable
// check rather than relying on the OS to reject it.
type FileBacking struct {
	f        *os.File
	writable bool
}

// OpenFile opens path for a database, creating it if createIfMissing is set.
func OpenFile(path string, createIfMissing bool, readOnly bool) (*FileBacking, error) {
	if path == "" {
		return nil, fmt.Errorf("stream: empty filename")
	}

	flags := os.O_RDWR
	if readOnly {
		flags = os.O_RDONLY
	}
	if createIfMissing && !readOnly {
		flags |= os.O_CREATE
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("stream: failed to open %q: %w", path, err)
	}

	return &FileBacking{f: f, writable: !readOnly}, nil
}

func (fb *FileBacking) Read(p []byte) (int, error)               { return fb.f.Read(p) }
func (fb *FileBacking) Write(p []byte) (int, error) {
	if !fb.writable {
		return 0, fmt.Errorf("stream: backing file is read-only")
	}
	return fb.f.Write(p)
}
func (fb *FileBacking) Seek(offset int64, whence int) (int64, error) {
	return fb.f.Seek(offset, whence)
}

func (fb *FileBacking) Len() (int64, error) {
	info, err := fb.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stream: failed to stat backing file: %w", err)
	}
	return info.Size(), nil
}

func (fb *FileBacking) Truncate(size int64) error {
	if !fb.writable {
		return fmt.Errorf("stream: backing file is read-only")
	}
	return fb.f.Truncate(size)
}

func (fb *FileBacking) Flush() error {
	if !fb.writable {
		return nil
	}
	return fb.f.Sync()
}

func (fb *FileBacking) Writable() bool { return fb.writable }

func (fb *FileBacking) Close() error { return fb.f.Close() }

// Name returns the path backing this stream.
func (fb *FileBacking) Name() string { return fb.f.Name() }

// DropFile removes a database file from disk entirely.
func DropFile(path string) error {
	if path == "" {
		return fmt.Errorf("stream: empty filename")
	}
	return os.Remove(path)
}
