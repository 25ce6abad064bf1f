package websocket

import (
	"bufio"
	"context"
	"io"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// connState tracks where a [Conn] sits in the closing handshake
// (spec data model ConnectionState).
type connState int

const (
	stateOpen connState = iota
	stateLocalClosing // we sent Close, waiting on the peer's Close (or its grace period)
	stateClosed
)

// outbound is one item the application asked the manager to write:
// either a Message, or a request to start the closing handshake.
type outbound struct {
	msg     Message
	isClose bool
	code    StatusCode
	reason  string
	result  chan error
}

// Conn is one WebSocket connection (RFC 6455): a goroutine (the
// "manager") does all writing to the underlying byte-stream and
// multiplexes outbound application messages, inbound frames (decoded by
// a reader goroutine it starts), and shutdown through a select loop. There is no shared mutable state and no callback — every
// interaction crosses a channel.
//
// A Conn is created by [Accept] or [Connect], never directly.
type Conn struct {
	id     string
	role   Role
	stream io.ReadWriteCloser
	log    Logger

	gracePeriod time.Duration

	outbox chan outbound
	inbox  chan Message
	done   chan struct{}

	// finalErr is written exactly once by the manager goroutine before it
	// closes done, and only ever read after done is observed closed — the
	// channel close/receive is the happens-before edge, so this needs no
	// separate lock.
	finalErr error
}

// newConn wires up the channels and starts the manager goroutine. br/bw
// must already be positioned immediately after the handshake's header
// block: the manager reads and writes nothing else.
func newConn(stream io.ReadWriteCloser, br *bufio.Reader, bw *bufio.Writer, role Role, cfg config) *Conn {
	c := &Conn{
		id:          uuid.NewString(),
		role:        role,
		stream:      stream,
		log:         cfg.logger,
		gracePeriod: cfg.gracePeriod,
		outbox:      make(chan outbound, cfg.sendQueue),
		inbox:       make(chan Message),
		done:        make(chan struct{}),
	}

	go c.manage(br, bw)
	return c
}

// ID returns the connection's correlation identifier, used to tag every
// log event the manager emits.
func (c *Conn) ID() string { return c.id }

// Role reports whether this connection played the client or server side
// of the opening handshake.
func (c *Conn) Role() Role { return c.role }

// Send enqueues msg for the manager to write as a single WebSocket
// message, fragmenting it if it exceeds [MaxFramePayload]. Blocks until
// either the manager has written the message (or failed to), ctx is
// done, or the connection is no longer open.
func (c *Conn) Send(ctx context.Context, msg Message) error {
	ob := outbound{msg: msg, result: make(chan error, 1)}
	select {
	case c.outbox <- ob:
	case <-c.done:
		return c.terminalError()
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-ob.result:
		return err
	case <-c.done:
		select {
		case err := <-ob.result:
			return err
		default:
			return c.terminalError()
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Receive blocks until the manager has a complete application message
// reassembled, ctx is done, or the connection has terminated.
func (c *Conn) Receive(ctx context.Context) (Message, error) {
	select {
	case msg, ok := <-c.inbox:
		if !ok {
			return Message{}, c.terminalError()
		}
		return msg, nil
	case <-c.done:
		return Message{}, c.terminalError()
	case <-ctx.Done():
		return Message{}, ctx.Err()
	}
}

// Stop starts the closing handshake with [StatusNormalClosure] (if the
// connection is still open) and waits for the manager to finish tearing
// the stream down, bounded by ctx.
func (c *Conn) Stop(ctx context.Context) error {
	return c.closeLocal(ctx, StatusNormalClosure, "")
}

// CloseWithStatus starts the closing handshake with a caller-chosen
// status code and reason, otherwise identical to [Conn.Stop].
func (c *Conn) CloseWithStatus(ctx context.Context, code StatusCode, reason string) error {
	return c.closeLocal(ctx, code, reason)
}

func (c *Conn) closeLocal(ctx context.Context, code StatusCode, reason string) error {
	ob := outbound{isClose: true, code: code, reason: reason, result: make(chan error, 1)}
	select {
	case c.outbox <- ob:
	case <-c.done:
		return c.waitDone(ctx)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-ob.result:
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
	}
	return c.waitDone(ctx)
}

func (c *Conn) waitDone(ctx context.Context) error {
	select {
	case <-c.done:
		return c.finalErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err reports the cause the manager terminated with: nil for a clean
// close (local [Conn.Stop]/[Conn.CloseWithStatus] or a peer Close with no
// error), or the underlying [FrameError]/[IOError]/[ErrMessageTooLarge]
// otherwise. Only meaningful after the connection has closed — spec.md
// §7's "terminal-state accessor" for the cause Send/Receive no longer
// expose directly once they start returning [ErrConnectionClosed].
func (c *Conn) Err() error {
	select {
	case <-c.done:
		return c.finalErr
	default:
		return nil
	}
}

// terminalError is what Send/Receive return once the connection is
// closed: always satisfies errors.Is(err, ErrConnectionClosed), per
// spec.md §7, regardless of cause. The cause itself stays reachable via
// errors.As/errors.Unwrap, or through [Conn.Err]. Only meaningful after
// done is closed; see the finalErr field comment for why reading it here
// is safe without a separate lock.
func (c *Conn) terminalError() error {
	if c.finalErr == nil {
		return ErrConnectionClosed
	}
	return &closedError{cause: c.finalErr}
}

// manage is the connection's manager goroutine: it owns bw and the
// reassembly state exclusively and is the only writer to the underlying
// stream after the handshake (spec.md §4.D). Reading br is left to the
// readLoop goroutine it starts, which hands decoded frames over a channel.
func (c *Conn) manage(br *bufio.Reader, bw *bufio.Writer) {
	defer close(c.done)
	defer c.stream.Close()

	frames := make(chan rawFrame)
	readErrc := make(chan error, 1)
	go c.readLoop(br, frames, readErrc)

	c.log.Info().Str("conn_id", c.id).Str("role", c.role.String()).Msg("connection open")

	reasm := &reassembler{}
	state := stateOpen
	var graceTimer *time.Timer
	var graceC <-chan time.Time

	finish := func(err error) {
		if graceTimer != nil {
			graceTimer.Stop()
		}
		if err != nil {
			c.log.Error().Str("conn_id", c.id).Err(err).Msg("connection terminated")
		} else {
			c.log.Info().Str("conn_id", c.id).Msg("connection closed")
		}
		c.finalErr = err
		close(c.inbox)
		state = stateClosed
	}

	// handleFrame processes one decoded frame, including replying to a
	// Ping with a Pong. Factored out so the priority pass below and the
	// main select share identical handling.
	handleFrame := func(raw rawFrame) {
		msg, closeReq, err := reasm.accept(raw)
		if err != nil {
			_ = c.sendClose(bw, closeStatus(err), "")
			finish(err)
			return
		}
		if closeReq != nil {
			switch state {
			case stateOpen:
				_ = c.sendClose(bw, closeReq.code, closeReq.reason)
				finish(nil)
			case stateLocalClosing:
				finish(nil)
			default:
				finish(nil)
			}
			return
		}
		if raw.opcode == opcodePing {
			pong := rawFrame{fin: true, opcode: opcodePong, payload: raw.payload}
			if err := encodeFrame(bw, c.role, pong); err != nil {
				finish(err)
			}
			return
		}
		if raw.opcode == opcodePong {
			return
		}
		if msg != nil {
			c.inbox <- *msg
		}
	}

	for state != stateClosed {
		// Control frames are sent ahead of data frames whenever both are
		// pending (spec.md §4.D): drain any frame already decoded before
		// considering a queued outbound Send, so a waiting Ping always
		// gets its Pong out before a data frame the application enqueued
		// concurrently.
		select {
		case raw, ok := <-frames:
			if ok {
				handleFrame(raw)
			}
			continue
		default:
		}

		select {
		case ob := <-c.outbox:
			if ob.isClose {
				if state == stateOpen {
					if err := c.sendClose(bw, ob.code, ob.reason); err != nil {
						ob.result <- err
						finish(err)
						break
					}
					c.log.Debug().Str("conn_id", c.id).Msg("sent close frame, awaiting peer")
					state = stateLocalClosing
					graceTimer = time.NewTimer(c.gracePeriod)
					graceC = graceTimer.C
				}
				ob.result <- nil
				continue
			}

			if state != stateOpen {
				ob.result <- ErrConnectionClosed
				continue
			}
			err := c.sendMessage(bw, ob.msg)
			ob.result <- err
			if err != nil {
				finish(err)
			}

		case raw, ok := <-frames:
			if ok {
				handleFrame(raw)
			}

		case err := <-readErrc:
			if state == stateOpen {
				_ = c.sendClose(bw, closeStatus(err), "")
			}
			finish(err)

		case <-graceC:
			finish(nil)
		}
	}

	// Drain any senders still waiting so Send/closeLocal never deadlock.
	for {
		select {
		case ob := <-c.outbox:
			ob.result <- ErrConnectionClosed
		default:
			return
		}
	}
}

// readLoop decodes frames off br until the stream fails or is closed,
// handing each one to the manager goroutine. Runs independently so a
// blocking Read never stalls the outbox side of the select loop.
func (c *Conn) readLoop(br *bufio.Reader, frames chan<- rawFrame, errc chan<- error) {
	for {
		raw, err := decodeFrame(br, c.role)
		if err != nil {
			select {
			case errc <- err:
			case <-c.done:
			}
			return
		}
		select {
		case frames <- raw:
		case <-c.done:
			return
		}
	}
}

// sendMessage fragments msg into frames no larger than MaxFramePayload
// and writes each with encodeFrame (spec.md §4.D fragmentation rule: an
// endpoint MUST NOT interleave another message's frames).
func (c *Conn) sendMessage(bw *bufio.Writer, msg Message) error {
	var payload []byte
	var oc opcode
	switch msg.Kind() {
	case KindText:
		t, _ := msg.Text()
		payload = t.Bytes()
		oc = opcodeText
	default:
		b, _ := msg.Binary()
		payload = b.Bytes()
		oc = opcodeBinary
	}

	if len(payload) == 0 {
		return encodeFrame(bw, c.role, rawFrame{fin: true, opcode: oc, payload: nil})
	}

	for offset := 0; offset < len(payload); offset += MaxFramePayload {
		end := offset + MaxFramePayload
		if end > len(payload) {
			end = len(payload)
		}
		frameOp := opcodeContinuation
		if offset == 0 {
			frameOp = oc
		}
		fin := end == len(payload)
		if err := encodeFrame(bw, c.role, rawFrame{fin: fin, opcode: frameOp, payload: payload[offset:end]}); err != nil {
			return err
		}
	}
	return nil
}

func (c *Conn) sendClose(bw *bufio.Writer, code StatusCode, reason string) error {
	reason = truncateCloseReason(reason)
	payload := make([]byte, 2+len(reason))
	payload[0] = byte(code >> 8)
	payload[1] = byte(code)
	copy(payload[2:], reason)
	return encodeFrame(bw, c.role, rawFrame{fin: true, opcode: opcodeClose, payload: payload})
}

// truncateCloseReason shortens reason so a 2-byte status code plus the
// reason never exceeds a control frame's 125-byte limit (decodeFrame
// rejects anything bigger), cutting at a rune boundary so the kept bytes
// stay valid UTF-8.
func truncateCloseReason(reason string) string {
	const maxReason = maxControlPayload - 2
	if len(reason) <= maxReason {
		return reason
	}
	b := reason[:maxReason]
	for len(b) > 0 && !utf8.ValidString(b) {
		b = b[:len(b)-1]
	}
	return b
}

// closeSignal reports the status code and reason of a Close frame
// received from the peer.
type closeSignal struct {
	code   StatusCode
	reason string
}

// reassembler accumulates fragmented data frames into complete
// [Message] values (spec.md §4.D reassembly rule).
type reassembler struct {
	active bool
	kind   Kind
	buf    []byte
}

// accept feeds one decoded frame to the reassembler. It returns at most
// one of: a completed Message, a close signal (the peer sent Close), or
// an error (a protocol violation the caller should close the connection
// over). A Ping, a Pong, or a non-final fragment returns none of them.
func (r *reassembler) accept(raw rawFrame) (*Message, *closeSignal, error) {
	switch raw.opcode {
	case opcodeClose:
		code := StatusNormalClosure
		reason := ""
		if len(raw.payload) >= 2 {
			raw16 := uint16(raw.payload[0])<<8 | uint16(raw.payload[1])
			sc, ok := parseStatusCode(raw16)
			if !ok {
				return nil, nil, &FrameError{Reason: ReasonCode, Code: raw16}
			}
			code = sc
			if len(raw.payload) > 2 && !utf8.Valid(raw.payload[2:]) {
				return nil, nil, &FrameError{Reason: ReasonText}
			}
			reason = string(raw.payload[2:])
		}
		return nil, &closeSignal{code: code, reason: reason}, nil

	case opcodePing, opcodePong:
		return nil, nil, nil

	case opcodeText, opcodeBinary:
		if r.active {
			return nil, nil, &FrameError{Reason: ReasonInconsistent}
		}
		if raw.fin {
			msg, err := buildMessage(raw.opcode, raw.payload)
			if err != nil {
				return nil, nil, err
			}
			return &msg, nil, nil
		}
		if err := r.checkSize(len(raw.payload)); err != nil {
			return nil, nil, err
		}
		r.active = true
		if raw.opcode == opcodeText {
			r.kind = KindText
		} else {
			r.kind = KindBinary
		}
		r.buf = append([]byte(nil), raw.payload...)
		return nil, nil, nil

	case opcodeContinuation:
		if !r.active {
			return nil, nil, &FrameError{Reason: ReasonInconsistent}
		}
		if err := r.checkSize(len(raw.payload)); err != nil {
			return nil, nil, err
		}
		r.buf = append(r.buf, raw.payload...)
		if !raw.fin {
			return nil, nil, nil
		}
		oc := opcodeText
		if r.kind == KindBinary {
			oc = opcodeBinary
		}
		payload := r.buf
		r.active = false
		r.buf = nil
		msg, err := buildMessage(oc, payload)
		if err != nil {
			return nil, nil, err
		}
		return &msg, nil, nil

	default:
		return nil, nil, &FrameError{Reason: ReasonOpcode, Opcode: byte(raw.opcode)}
	}
}

// checkSize rejects a frame before its payload is appended, so a peer
// can never force the buffer to grow past MaxMessage even transiently
// (spec.md §9: check before each append, never after).
func (r *reassembler) checkSize(incoming int) error {
	if len(r.buf)+incoming > MaxMessage {
		return ErrMessageTooLarge
	}
	return nil
}

func buildMessage(oc opcode, payload []byte) (Message, error) {
	if oc == opcodeText {
		t, err := NewTextBytes(payload)
		if err != nil {
			return Message{}, &FrameError{Reason: ReasonText, Err: err}
		}
		return NewTextMessage(t), nil
	}
	return NewBinaryMessage(NewBinary(payload)), nil
}
