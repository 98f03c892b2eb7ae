package protocol

import "errors"

// ErrUnderrun is returned when a read asks for more bytes than the
// buffer has left unread. A failed read consumes nothing.
var ErrUnderrun = errors.New("Bytes buffer underrun")

// BytesBuffer is a growable byte sequence with a read cursor. All frame
// and payload serialisation is built on top of it.
//
// Writes append at the end and never move the cursor. Reads consume
// from the cursor onward; in the normal flow a buffer is filled once
// and then drained front to back.
type BytesBuffer struct {
	bytes  []byte
	cursor int
}

// NewBytesBuffer wraps an existing byte sequence with the cursor at 0.
func NewBytesBuffer(bytes []byte) *BytesBuffer {
	return &BytesBuffer{bytes: bytes}
}

// EmptyBytesBuffer returns a fresh buffer with nothing to read.
func EmptyBytesBuffer() *BytesBuffer {
	return &BytesBuffer{}
}

// Write appends data to the end of the buffer. It never fails.
func (b *BytesBuffer) Write(data []byte) {
	b.bytes = append(b.bytes, data...)
}

// ReadExact returns the next n unread bytes and advances the cursor by
// n. It fails with ErrUnderrun when fewer than n unread bytes remain.
func (b *BytesBuffer) ReadExact(n int) ([]byte, error) {
	if len(b.bytes)-b.cursor < n {
		return nil, ErrUnderrun
	}

	start := b.cursor
	b.cursor += n

	return b.bytes[start:b.cursor], nil
}

// ReadRemaining returns every unread byte and advances the cursor to
// the end. Unlike ReadExact(0) it fails with ErrUnderrun when zero
// bytes remain, so a caller that treats failure as "no more data" must
// check Remaining first.
func (b *BytesBuffer) ReadRemaining() ([]byte, error) {
	if b.cursor >= len(b.bytes) {
		return nil, ErrUnderrun
	}

	return b.ReadExact(len(b.bytes) - b.cursor)
}

// Remaining reports how many unread bytes are left.
func (b *BytesBuffer) Remaining() int {
	return len(b.bytes) - b.cursor
}

// Bytes returns the whole underlying sequence, read or not.
func (b *BytesBuffer) Bytes() []byte {
	return b.bytes
}
