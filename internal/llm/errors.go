package llm

import "fmt"

// AuthError means the endpoint rejected our credentials. Never retried.
type AuthError struct {
	Status  int
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed (status %d): %s", e.Status, e.Message)
}

// RateLimitError means the endpoint asked us to slow down. Retried with
// backoff.
type RateLimitError struct {
	Message string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %s", e.Message)
}

// TransportError covers network failures and server-side errors. Status
// is zero when the request never produced an HTTP response.
type TransportError struct {
	Status  int
	Message string
	Cause   error
}

func (e *TransportError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("llm request failed (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("llm request failed: %s", e.Message)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// retryable reports whether another attempt could plausibly succeed.
// Bad credentials and client-side mistakes are terminal; rate limits,
// network failures, and 5xx responses are transient.
func retryable(err error) bool {
	switch e := err.(type) {
	case *AuthError:
		return false
	case *RateLimitError:
		return true
	case *TransportError:
		return e.Status == 0 || e.Status >= 500
	default:
		return false
	}
}
