package websocket

import "unicode/utf8"

// Text is an immutable UTF-8 application payload (RFC 6455 Section 5.6);
// [NewTextBytes] validates its bytes, [NewText] does not. Once
// constructed it never mutates, so copying a Text is cheap — the copy
// shares the same backing array.
type Text struct {
	b []byte
}

// NewText wraps a Go string as Text. Infallible: s is copied as-is
// without UTF-8 validation, so a string holding invalid UTF-8 yields a
// Text holding the same invalid bytes.
func NewText(s string) Text {
	return Text{b: []byte(s)}
}

// NewTextBytes validates raw as UTF-8 and wraps it as Text. Returns
// ErrInvalidUTF8 if raw isn't valid UTF-8 (spec data model invariant 4).
func NewTextBytes(raw []byte) (Text, error) {
	if !utf8.Valid(raw) {
		return Text{}, ErrInvalidUTF8
	}
	b := make([]byte, len(raw))
	copy(b, raw)
	return Text{b: b}, nil
}

// String returns the text's content.
func (t Text) String() string { return string(t.b) }

// Bytes returns the text's UTF-8 bytes. The caller must not mutate the
// returned slice.
func (t Text) Bytes() []byte { return t.b }

// Len returns the number of bytes in the text.
func (t Text) Len() int { return len(t.b) }

// Binary is an immutable application payload with no content constraint.
type Binary struct {
	b []byte
}

// NewBinary copies raw into a new, immutable Binary.
func NewBinary(raw []byte) Binary {
	b := make([]byte, len(raw))
	copy(b, raw)
	return Binary{b: b}
}

// Bytes returns the binary payload. The caller must not mutate the
// returned slice.
func (b Binary) Bytes() []byte { return b.b }

// Len returns the number of bytes in the payload.
func (b Binary) Len() int { return len(b.b) }

// Kind tags which alternative a [Message] holds.
type Kind int

const (
	// KindText tags a [Message] holding [Text].
	KindText Kind = iota + 1
	// KindBinary tags a [Message] holding [Binary].
	KindBinary
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "Text"
	case KindBinary:
		return "Binary"
	default:
		return "Unknown"
	}
}

// Message is the application-level unit exchanged across [Conn.Send] and
// [Conn.Receive]: a tagged union of [Text] and [Binary] (spec data model
// §3). Possibly assembled from many fragmented frames by the connection
// engine, but opaque to the application once delivered.
type Message struct {
	kind Kind
	text Text
	bin  Binary
}

// NewTextMessage wraps t as a text [Message].
func NewTextMessage(t Text) Message {
	return Message{kind: KindText, text: t}
}

// NewBinaryMessage wraps b as a binary [Message].
func NewBinaryMessage(b Binary) Message {
	return Message{kind: KindBinary, bin: b}
}

// Kind reports whether the message holds Text or Binary.
func (m Message) Kind() Kind { return m.kind }

// Text returns the message's text payload and true, or the zero Text and
// false if the message is Binary.
func (m Message) Text() (Text, bool) {
	if m.kind != KindText {
		return Text{}, false
	}
	return m.text, true
}

// Binary returns the message's binary payload and true, or the zero
// Binary and false if the message is Text.
func (m Message) Binary() (Binary, bool) {
	if m.kind != KindBinary {
		return Binary{}, false
	}
	return m.bin, true
}

// Len returns the payload length regardless of kind.
func (m Message) Len() int {
	if m.kind == KindText {
		return m.text.Len()
	}
	return m.bin.Len()
}

// StatusCode is a WebSocket close status code (RFC 6455 Section 7.4),
// restricted to the closed set spec.md names; every other value decoded
// off the wire is a protocol error, and 1005/1006 are reserved
// placeholders that must never be written to the wire.
type StatusCode uint16

const (
	// StatusNormalClosure indicates the connection purpose was fulfilled (1000).
	StatusNormalClosure StatusCode = 1000
	// StatusGoingAway indicates an endpoint is going away, e.g. server shutdown (1001).
	StatusGoingAway StatusCode = 1001
	// StatusProtocolError indicates a generic protocol violation (1002).
	StatusProtocolError StatusCode = 1002
	// StatusUnknownType indicates an endpoint received a data type it cannot accept (1003).
	StatusUnknownType StatusCode = 1003
	// StatusInconsistentData indicates a text message with invalid UTF-8 (1007).
	StatusInconsistentData StatusCode = 1007
	// StatusPolicyViolation is a generic policy-violation code (1008).
	StatusPolicyViolation StatusCode = 1008
	// StatusMessageTooBig indicates a reassembled message exceeded MaxMessage (1009).
	StatusMessageTooBig StatusCode = 1009
	// StatusUnexpectedCondition is a generic server-side failure code (1011).
	StatusUnexpectedCondition StatusCode = 1011

	// statusNoStatusReceived (1005) is reserved: it must never appear on the
	// wire, and is used only by [StatusCode.String]. A peer Close without a
	// status code is treated as StatusNormalClosure.
	statusNoStatusReceived StatusCode = 1005
	// statusAbnormalClosure (1006) is reserved: it must never appear on the
	// wire, and is used only by [StatusCode.String]. A stream that drops
	// without a Close frame is reported through [Conn.Err] as an I/O error.
	statusAbnormalClosure StatusCode = 1006
)

func (sc StatusCode) String() string {
	switch sc {
	case StatusNormalClosure:
		return "Normal Closure"
	case StatusGoingAway:
		return "Going Away"
	case StatusProtocolError:
		return "Protocol Error"
	case StatusUnknownType:
		return "Unknown Type"
	case statusNoStatusReceived:
		return "No Status Received"
	case statusAbnormalClosure:
		return "Abnormal Closure"
	case StatusInconsistentData:
		return "Inconsistent Data"
	case StatusPolicyViolation:
		return "Policy Violation"
	case StatusMessageTooBig:
		return "Message Too Big"
	case StatusUnexpectedCondition:
		return "Unexpected Condition"
	default:
		return "Unknown"
	}
}

// parseStatusCode validates raw against the closed set of status codes
// this engine ever sends or reports to the application for a received
// Close frame.
func parseStatusCode(raw uint16) (StatusCode, bool) {
	sc := StatusCode(raw)
	switch sc {
	case StatusNormalClosure, StatusGoingAway, StatusProtocolError, StatusUnknownType,
		StatusInconsistentData, StatusPolicyViolation, StatusMessageTooBig, StatusUnexpectedCondition:
		return sc, true
	default:
		return 0, false
	}
}
