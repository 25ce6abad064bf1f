package websocket

import "github.com/rs/zerolog"

// Logger is the structured diagnostic sink a [Conn] writes connection
// lifecycle events to: the connection opening, a Close frame it sent
// while awaiting the peer's, and termination (with the error, if any). The zero value of
// [zerolog.Logger] is usable directly; the default (no [WithLogger]
// option) is [zerolog.Nop], which discards every event.
type Logger = zerolog.Logger

func nopLogger() Logger { return zerolog.Nop() }
