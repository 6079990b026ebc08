package models

// SessionState — производное состояние сессии. Никогда не персистится:
// вычисляется по наличию Credential и положению ExpiresAt относительно now.
type SessionState int

const (
	StateUnauthenticated SessionState = iota
	StateValid
	StateNearExpiry
	StateRefreshing
	StateExpired
)

func (s SessionState) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateValid:
		return "valid"
	case StateNearExpiry:
		return "near_expiry"
	case StateRefreshing:
		return "refreshing"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// ConnState — состояние логического соединения канала.
type ConnState int

const (
	Connecting ConnState = iota
	Open
	Closed
)

func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}
