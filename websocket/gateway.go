package websocket

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
)

// Accept performs the server side of the opening handshake over stream
// and, on success, returns a live [Conn] whose manager goroutine is
// already running. stream is assumed to be freshly connected with
// nothing read from it yet; Accept consumes exactly the handshake's
// bytes and hands the rest to the connection engine.
func Accept(stream io.ReadWriteCloser, opts ...Option) (*Conn, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	br := bufio.NewReader(stream)
	bw := bufio.NewWriter(stream)

	line, headers, err := readHeaderSection(br)
	if err != nil {
		_, _ = bw.Write(badRequestBytes())
		_ = bw.Flush()
		return nil, err
	}

	method, path, version, ok := parseRequestLine(line)
	if !ok {
		_, _ = bw.Write(badRequestBytes())
		_ = bw.Flush()
		return nil, &HandshakeError{Reason: ReasonParse, Detail: "malformed request line"}
	}
	_ = path // request routing is a collaborator's concern; this engine accepts any path.

	sh, err := newServerHandshake(method, version, headers)
	if err != nil {
		_, _ = bw.Write(badRequestBytes())
		_ = bw.Flush()
		return nil, err
	}

	if _, err := bw.Write(sh.responseBytes()); err != nil {
		return nil, &IOError{Err: err}
	}
	if err := bw.Flush(); err != nil {
		return nil, &IOError{Err: err}
	}

	cfg.logger.Info().Str("remote", remoteAddr(stream)).Msg("handshake accepted")
	return newConn(stream, br, bw, RoleServer, cfg), nil
}

// Connect dials addr over TCP, performs the client side of the opening
// handshake for the given path, and returns a live [Conn] on success.
func Connect(ctx context.Context, addr, path string, opts ...Option) (*Conn, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &IOError{Err: err}
	}

	br := bufio.NewReader(conn)
	bw := bufio.NewWriter(conn)

	// addr is used verbatim as the Host header value: spec.md §4.C's
	// literal request format is "Host: <host:port>", not the bare host.
	ch, err := newClientHandshake(addr, path)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if _, err := bw.Write(ch.requestBytes()); err != nil {
		conn.Close()
		return nil, &IOError{Err: err}
	}
	if err := bw.Flush(); err != nil {
		conn.Close()
		return nil, &IOError{Err: err}
	}

	statusLine, headers, err := readHeaderSection(br)
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.validateResponse(statusLine, headers); err != nil {
		conn.Close()
		return nil, err
	}

	cfg.logger.Info().Str("addr", addr).Str("path", path).Msg("handshake completed")
	return newConn(conn, br, bw, RoleClient, cfg), nil
}

func remoteAddr(stream io.ReadWriteCloser) string {
	if nc, ok := stream.(net.Conn); ok {
		return nc.RemoteAddr().String()
	}
	return fmt.Sprintf("%T", stream)
}
