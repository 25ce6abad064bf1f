package websocket

import (
	"bufio"
	"crypto/rand"
	"encoding/binary"
	"io"
)

// Size limits from spec.md §3.
const (
	// MaxFramePayload is the largest payload a single frame may carry.
	MaxFramePayload = 16 * 1024 * 1024
	// MaxMessage is the largest a reassembled application message may grow to.
	MaxMessage = 64 * 1024 * 1024

	maxControlPayload = 125

	len7Bit  = 125
	len16Bit = 126
	len64Bit = 127
)

// rawFrame is one WebSocket frame as it crosses the wire (spec data model
// RawFrame): transient within the engine, produced by decodeFrame and
// consumed by the reassembler or dispatch, or produced by the application
// and consumed by encodeFrame.
type rawFrame struct {
	fin     bool
	opcode  opcode
	payload []byte
}

// decodeFrame reads exactly one WebSocket frame from r, as the peer side
// of a connection with the given role (spec.md §4.B decode_one).
func decodeFrame(r *bufio.Reader, role Role) (rawFrame, error) {
	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return rawFrame{}, &IOError{Err: err}
	}

	fin := header[0]&0x80 != 0
	if header[0]&0x70 != 0 { // RSV1..RSV3 — bits 4..6, never the opcode nibble.
		return rawFrame{}, &FrameError{Reason: ReasonInconsistent}
	}
	oc, ok := parseOpcode(header[0] & 0x0F)
	if !ok {
		return rawFrame{}, &FrameError{Reason: ReasonOpcode, Opcode: header[0] & 0x0F}
	}

	if oc.isControl() && !fin {
		return rawFrame{}, &FrameError{Reason: ReasonInconsistent}
	}
	if oc == opcodeContinuation && fin {
		// Continuation with fin=true is legal: it ends a fragmented message.
		// Legality against reassembly state (is there actually a buffer
		// open?) is the reassembler's job, not the codec's.
	}

	masked := header[1]&0x80 != 0
	wantMasked := role == RoleServer
	if masked != wantMasked {
		return rawFrame{}, &FrameError{Reason: ReasonPayloadSize}
	}

	payloadLen := uint64(header[1] & 0x7F)
	switch payloadLen {
	case len16Bit:
		var buf [2]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return rawFrame{}, &IOError{Err: err}
		}
		payloadLen = uint64(binary.BigEndian.Uint16(buf[:]))
	case len64Bit:
		var buf [8]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return rawFrame{}, &IOError{Err: err}
		}
		payloadLen = binary.BigEndian.Uint64(buf[:])
		if payloadLen&(1<<63) != 0 {
			return rawFrame{}, &FrameError{Reason: ReasonInconsistent}
		}
	}

	if oc.isControl() && payloadLen > maxControlPayload {
		return rawFrame{}, &FrameError{Reason: ReasonInconsistent}
	}
	if payloadLen > MaxFramePayload {
		return rawFrame{}, &FrameError{Reason: ReasonPayloadSize}
	}

	var mask [4]byte
	if masked {
		if _, err := io.ReadFull(r, mask[:]); err != nil {
			return rawFrame{}, &IOError{Err: err}
		}
	}

	var payload []byte
	if payloadLen > 0 {
		payload = make([]byte, payloadLen)
		if _, err := io.ReadFull(r, payload); err != nil {
			return rawFrame{}, &IOError{Err: err}
		}
		if masked {
			applyMask(payload, mask)
		}
	}

	return rawFrame{fin: fin, opcode: oc, payload: payload}, nil
}

// encodeFrame writes raw to w as the given role, applying the role's
// masking policy, and flushes so the frame boundary is preserved even if
// the transport buffers (spec.md §4.B encode_one).
func encodeFrame(w *bufio.Writer, role Role, raw rawFrame) error {
	var header [2]byte
	if raw.fin {
		header[0] |= 0x80
	}
	header[0] |= byte(raw.opcode) & 0x0F

	mustMask := role == RoleClient
	if mustMask {
		header[1] |= 0x80
	}

	n := len(raw.payload)
	switch {
	case n <= len7Bit:
		header[1] |= byte(n)
	case n <= 0xFFFF:
		header[1] |= len16Bit
	default:
		header[1] |= len64Bit
	}

	if _, err := w.Write(header[:]); err != nil {
		return &IOError{Err: err}
	}

	switch {
	case n <= len7Bit:
		// Length already carried in the header's low 7 bits.
	case n <= 0xFFFF:
		var buf [2]byte
		binary.BigEndian.PutUint16(buf[:], uint16(n))
		if _, err := w.Write(buf[:]); err != nil {
			return &IOError{Err: err}
		}
	default:
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(n))
		if _, err := w.Write(buf[:]); err != nil {
			return &IOError{Err: err}
		}
	}

	payload := raw.payload
	if mustMask {
		var mask [4]byte
		if _, err := rand.Read(mask[:]); err != nil { // crypto/rand: spec.md §9 requires a CSPRNG, not a fast PRNG.
			return &IOError{Err: err}
		}
		if _, err := w.Write(mask[:]); err != nil {
			return &IOError{Err: err}
		}
		if n > 0 {
			payload = make([]byte, n)
			copy(payload, raw.payload)
			applyMask(payload, mask)
		}
	}

	if n > 0 {
		if _, err := w.Write(payload); err != nil {
			return &IOError{Err: err}
		}
	}

	return w.Flush()
}

// applyMask XORs data in place with mask, cycling through its four bytes
// (RFC 6455 Section 5.3). The same operation masks and unmasks.
func applyMask(data []byte, mask [4]byte) {
	for i := range data {
		data[i] ^= mask[i%4]
	}
}
