package websocket

import (
	"bufio"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeAccept_RFCExample(t *testing.T) {
	// The exact key/accept pair from RFC 6455 Section 1.3.
	got := computeAccept("dGhlIHNhbXBsZSBub25jZQ==")
	assert.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", got)
}

func TestHeaderHasToken(t *testing.T) {
	assert.True(t, headerHasToken("Upgrade", "upgrade"))
	assert.True(t, headerHasToken("keep-alive, Upgrade", "upgrade"))
	assert.False(t, headerHasToken("keep-alive", "upgrade"))
}

func TestServerHandshake_AcceptsValidRequest(t *testing.T) {
	req := "GET /chat HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Version: 13\r\n" +
		"\r\n"

	br := bufio.NewReader(strings.NewReader(req))
	line, headers, err := readHeaderSection(br)
	require.NoError(t, err)

	method, path, version, ok := parseRequestLine(line)
	require.True(t, ok)
	assert.Equal(t, "GET", method)
	assert.Equal(t, "/chat", path)
	assert.Equal(t, "HTTP/1.1", version)

	sh, err := newServerHandshake(method, version, headers)
	require.NoError(t, err)
	assert.Equal(t, "s3pPLMBiTxaQ9kYGzzhZRbK+xOo=", sh.accept)
}

func TestServerHandshake_AcceptsAnyPath(t *testing.T) {
	req := "GET /anything/goes HTTP/1.1\r\n" +
		"Host: example.com\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: dGhlIHNhbXBsZSBub25jZQ==\r\n" +
		"Sec-WebSocket-Version: 13\r\n" +
		"\r\n"

	br := bufio.NewReader(strings.NewReader(req))
	line, headers, err := readHeaderSection(br)
	require.NoError(t, err)

	method, _, version, ok := parseRequestLine(line)
	require.True(t, ok)

	_, err = newServerHandshake(method, version, headers)
	assert.NoError(t, err)
}

func TestServerHandshake_RejectsWrongMethod(t *testing.T) {
	headers := map[string][]string{
		"Host":                  {"example.com"},
		"Upgrade":               {"websocket"},
		"Connection":            {"Upgrade"},
		"Sec-Websocket-Key":     {"dGhlIHNhbXBsZSBub25jZQ=="},
		"Sec-Websocket-Version": {"13"},
	}
	_, err := newServerHandshake("POST", "HTTP/1.1", headers)
	var he *HandshakeError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, ReasonNonConformant, he.Reason)
}

func TestServerHandshake_RejectsBadKey(t *testing.T) {
	headers := map[string][]string{
		"Host":                  {"example.com"},
		"Upgrade":               {"websocket"},
		"Connection":            {"Upgrade"},
		"Sec-Websocket-Key":     {"not-base64-16-bytes"},
		"Sec-Websocket-Version": {"13"},
	}
	_, err := newServerHandshake("GET", "HTTP/1.1", headers)
	var he *HandshakeError
	require.ErrorAs(t, err, &he)
}

func TestClientHandshake_RequestBytesShape(t *testing.T) {
	ch, err := newClientHandshake("example.com", "/chat")
	require.NoError(t, err)

	req := string(ch.requestBytes())
	assert.True(t, strings.HasPrefix(req, "GET /chat HTTP/1.1\r\n"))
	assert.Contains(t, req, "Upgrade: websocket\r\n")
	assert.Contains(t, req, "Connection: Upgrade\r\n")
	assert.Contains(t, req, "Sec-WebSocket-Version: 13\r\n")
	assert.Contains(t, req, "Host: example.com\r\n")
	assert.True(t, strings.HasSuffix(req, "\r\n\r\n"))
}

func TestClientHandshake_ValidatesServerResponse(t *testing.T) {
	ch, err := newClientHandshake("example.com", "/")
	require.NoError(t, err)

	accept := computeAccept(ch.nonce)
	headers := map[string][]string{
		"Upgrade":              {"websocket"},
		"Connection":           {"Upgrade"},
		"Sec-Websocket-Accept": {accept},
	}
	err = ch.validateResponse("HTTP/1.1 101 Switching Protocols", headers)
	assert.NoError(t, err)
}

func TestServerHandshake_RejectsDuplicateUpgradeHeader(t *testing.T) {
	headers := map[string][]string{
		"Host":                  {"example.com"},
		"Upgrade":               {"websocket", "websocket"},
		"Connection":            {"Upgrade"},
		"Sec-Websocket-Key":     {"dGhlIHNhbXBsZSBub25jZQ=="},
		"Sec-Websocket-Version": {"13"},
	}
	_, err := newServerHandshake("GET", "HTTP/1.1", headers)
	var he *HandshakeError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, ReasonNonConformant, he.Reason)
}

func TestServerHandshake_RejectsDuplicateConnectionHeader(t *testing.T) {
	headers := map[string][]string{
		"Host":                  {"example.com"},
		"Upgrade":               {"websocket"},
		"Connection":            {"Upgrade", "Upgrade"},
		"Sec-Websocket-Key":     {"dGhlIHNhbXBsZSBub25jZQ=="},
		"Sec-Websocket-Version": {"13"},
	}
	_, err := newServerHandshake("GET", "HTTP/1.1", headers)
	var he *HandshakeError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, ReasonNonConformant, he.Reason)
}

func TestClientHandshake_RejectsDuplicateUpgradeHeader(t *testing.T) {
	ch, err := newClientHandshake("example.com", "/")
	require.NoError(t, err)

	accept := computeAccept(ch.nonce)
	headers := map[string][]string{
		"Upgrade":              {"websocket", "websocket"},
		"Connection":           {"Upgrade"},
		"Sec-Websocket-Accept": {accept},
	}
	err = ch.validateResponse("HTTP/1.1 101 Switching Protocols", headers)
	var he *HandshakeError
	require.ErrorAs(t, err, &he)
}

func TestClientHandshake_RejectsMismatchedAccept(t *testing.T) {
	ch, err := newClientHandshake("example.com", "/")
	require.NoError(t, err)

	headers := map[string][]string{
		"Upgrade":              {"websocket"},
		"Connection":           {"Upgrade"},
		"Sec-Websocket-Accept": {"bogus"},
	}
	err = ch.validateResponse("HTTP/1.1 101 Switching Protocols", headers)
	var he *HandshakeError
	require.ErrorAs(t, err, &he)
}
