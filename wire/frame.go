// Package wire implements the host<->worker IPC protocol (spec.md §4.4,
// §6): length-prefixed binary frames carrying msgpack-encoded request and
// response payloads over each worker's stdin/stdout.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"
)

// MaxFrameSize bounds a single frame's payload to guard against a
// corrupted length prefix turning into an unbounded allocation.
const MaxFrameSize = 64 << 20 // 64 MiB

// WriteFrame writes payload as one frame: a 4-byte big-endian length
// followed by payload itself.
func WriteFrame(w io.Writer, payload []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))

	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("wire: write frame header: %w", err)
	}

	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("wire: write frame payload: %w", err)
	}

	return nil
}

// ReadFrame reads one frame's payload, blocking until the full frame has
// arrived or the reader is closed.
func ReadFrame(r io.Reader) ([]byte, error) {
	var hdr [4]byte

	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err // EOF/ErrUnexpectedEOF propagate as-is: crash detection depends on this
	}

	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxFrameSize {
		return nil, fmt.Errorf("wire: frame of %d bytes exceeds max %d", n, MaxFrameSize)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("wire: read frame payload: %w", err)
	}

	return payload, nil
}
