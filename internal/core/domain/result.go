package domain

// Result is the uniform discriminated value returned at the orchestrator
// boundary. Callers never see raw errors from successful-path code; failures
// are carried as data instead.
type Result[T any] struct {
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
	Payload T      `json:"payload,omitempty"`
}

// Ok wraps a success payload.
func Ok[T any](payload T) Result[T] {
	return Result[T]{OK: true, Payload: payload}
}

// Fail wraps a user-visible failure message.
func Fail[T any](message string) Result[T] {
	return Result[T]{OK: false, Error: message}
}
