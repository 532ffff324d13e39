package types

type ConnectionStatus string

const (
	ConnectionDisconnected ConnectionStatus = "disconnected"
	ConnectionReconnecting ConnectionStatus = "reconnecting"
	ConnectionConnected    ConnectionStatus = "connected"
)

func (s ConnectionStatus) String() string {
	if s == "" {
		return string(ConnectionDisconnected)
	}
	return string(s)
}

type SessionStatus string

const (
	SessionLoading SessionStatus = "loading"
	SessionReady   SessionStatus = "ready"
	SessionBusy    SessionStatus = "busy"
	SessionError   SessionStatus = "error"
)

func (s SessionStatus) String() string {
	if s == "" {
		return string(SessionLoading)
	}
	return string(s)
}
