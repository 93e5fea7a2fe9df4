package core

type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting" // popup open, polling
	StateExchanging   ConnectionState = "exchanging" // popup closed, awaiting credentials
	StateConnected    ConnectionState = "connected"
)

// Busy reports whether a handshake is in flight.
func (s ConnectionState) Busy() bool {
	return s == StateConnecting || s == StateExchanging
}
