package port

import "time"

// ResponseChannel abstracts binding issued tokens to the client's response,
// typically as HTTP-only cookies. Implementations live in the transport layer.
type ResponseChannel interface {
	BindToken(name, value string, expiry time.Time)
	ClearToken(name string)
}

// Cookie names used by the HTTP transport when binding a token bundle.
const (
	AccessTokenBinding  = "Authentication"
	RefreshTokenBinding = "Refresh"
)
