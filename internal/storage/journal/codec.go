package journal

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/yndnr/licmesh/internal/core/domain"
)

var (
	// ErrCorruptedFrame indicates a frame shorter than its header.
	ErrCorruptedFrame = errors.New("journal: corrupted frame")

	// ErrChecksumMismatch indicates a frame whose CRC does not match.
	ErrChecksumMismatch = errors.New("journal: checksum mismatch")

	// ErrUnknownFrameType indicates an unrecognized frame type byte.
	ErrUnknownFrameType = errors.New("journal: unknown frame type")
)

// frameType tags the payload.
type frameType byte

const (
	frameEvent frameType = 1
)

// maxFrameSize bounds a single frame so a corrupt length cannot trigger a
// huge allocation.
const maxFrameSize = 1 << 20

// encodeFrame renders ev as [len:4][crc32:4][type:1][json payload].
// len covers crc, type and payload.
func encodeFrame(ev *domain.Event) ([]byte, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("journal: marshal event: %w", err)
	}

	body := make([]byte, 0, 1+len(payload))
	body = append(body, byte(frameEvent))
	body = append(body, payload...)

	length := uint32(4 + len(body))
	out := make([]byte, 8, 8+len(body))
	binary.BigEndian.PutUint32(out[0:4], length)
	binary.BigEndian.PutUint32(out[4:8], crc32.ChecksumIEEE(body))
	return append(out, body...), nil
}

// readFrame reads one frame from r. It returns io.EOF at a clean end and
// io.ErrUnexpectedEOF for a torn tail.
func readFrame(r io.Reader) (*domain.Event, int64, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, 0, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if length < 5 || length > maxFrameSize {
		return nil, 0, ErrCorruptedFrame
	}

	frame := make([]byte, length)
	if _, err := io.ReadFull(r, frame); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, 0, err
	}

	wantCRC := binary.BigEndian.Uint32(frame[:4])
	body := frame[4:]
	if crc32.ChecksumIEEE(body) != wantCRC {
		return nil, 0, ErrChecksumMismatch
	}
	if frameType(body[0]) != frameEvent {
		return nil, 0, ErrUnknownFrameType
	}

	var ev domain.Event
	if err := json.Unmarshal(body[1:], &ev); err != nil {
		return nil, 0, fmt.Errorf("journal: unmarshal event: %w", err)
	}
	return &ev, int64(4 + length), nil
}
