// Package stream provides the seekable byte-stream abstraction every other
// package in this module persists through. Nothing outside this package
// touches a file descriptor or a raw buffer directly.
package stream

import "io"

// Backing is a seekable, readable, writable, truncatable backing store for
// a database. A file and an in-memory buffer both satisfy it, and the
// storage engine never branches on which one it has.
type Backing interface {
	io.Reader
	io.Writer
	io.Seeker

	// Len reports the current total size of the backing store in bytes.
	Len() (int64, error)

	// Truncate resizes the backing store to exactly size bytes.
	Truncate(size int64) error

	// Flush pushes any buffered writes to durable storage. For a
	// memory-backed store this is a no-op.
	Flush() error

	// Writable reports whether mutating calls are permitted.
	Writable() bool

	// Close releases any resources held by the backing store.
	Close() error
}

// ReadAt reads len(buf) bytes starting at offset without disturbing the
// stream's current position.
func ReadAt(b Backing, offset int64, buf []byte) error {
	pos, err := b.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	defer b.Seek(pos, io.SeekStart)

	if _, err := b.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	_, err = io.ReadFull(b, buf)
	return err
}

// WriteAt writes buf starting at offset without disturbing the stream's
// current position.
func WriteAt(b Backing, offset int64, buf []byte) error {
	pos, err := b.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	defer b.Seek(pos, io.SeekStart)

	if _, err := b.Seek(offset, io.SeekStart); err != nil {
		return err
	}
	_, err = b.Write(buf)
	return err
}
