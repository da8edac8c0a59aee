package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Framing: 4-byte big-endian byte count followed by the UTF-8 JSON
// envelope. Partial reads are handled by io.ReadFull on the caller's
// buffered reader.

const (
	// HeaderSize is the width of the length prefix.
	HeaderSize = 4

	// MaxFrameSize bounds a single message body. Anything larger is
	// treated as a corrupt stream.
	MaxFrameSize = 1 << 20
)

// ErrMalformedFrame marks a frame that decoded into garbage. The stream
// itself is still usable; the reader should drop the frame and carry on.
var ErrMalformedFrame = errors.New("malformed frame")

// ErrFrameTooLarge marks a length prefix beyond MaxFrameSize. Unlike a
// malformed body this poisons the stream, since the reader can no longer
// trust frame boundaries.
var ErrFrameTooLarge = errors.New("frame exceeds maximum size")

// WriteMessage frames and writes a single message. The caller is
// responsible for serializing concurrent writers.
func WriteMessage(w io.Writer, m Message) error {
	body, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if len(body) > MaxFrameSize {
		return ErrFrameTooLarge
	}
	var header [HeaderSize]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// ReadMessage reads one framed message. I/O errors are returned as-is
// so the caller can tell a dead connection from a bad frame:
// ErrMalformedFrame means the frame was consumed and can be skipped.
func ReadMessage(r io.Reader) (Message, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Message{}, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if length > MaxFrameSize {
		return Message{}, ErrFrameTooLarge
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Message{}, err
	}

	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if !m.Kind.Valid() {
		return Message{}, fmt.Errorf("%w: %q", ErrUnknownKind, m.Kind)
	}
	return m, nil
}
