package websocket

// Role is a connection's fixed identity: which side of the handshake it
// played, and therefore which masking direction applies (spec data model
// ConnectionRole). Set at creation and never changes.
type Role int

const (
	// RoleClient marks a connection that initiated the handshake. Client
	// connections mask every outgoing frame and reject masked incoming ones.
	RoleClient Role = iota + 1
	// RoleServer marks a connection that accepted the handshake. Server
	// connections never mask outgoing frames and reject unmasked incoming ones.
	RoleServer
)

func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleServer:
		return "server"
	default:
		return "unknown"
	}
}
