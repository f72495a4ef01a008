package core

import "errors"

// ErrorKind discriminates how the engine should react to a failed adapter
// call: retry next cycle, give up, or treat the adapter as unusable.
type ErrorKind int

const (
	// ErrTransient covers connect failures, read timeouts and any other
	// transport-level problem before a usable response was obtained.
	// Retrying the same call later is reasonable.
	ErrTransient ErrorKind = iota
	// ErrPermanent covers malformed or unexpected responses, exchange-side
	// rejections and contract violations. Retrying unmodified will not help.
	ErrPermanent
	// ErrConfig covers missing or invalid settings detected at adapter
	// construction time. The adapter never becomes usable.
	ErrConfig
)

func (k ErrorKind) String() string {
	switch k {
	case ErrTransient:
		return "transient"
	case ErrPermanent:
		return "permanent"
	case ErrConfig:
		return "config"
	}
	return "unknown"
}

// ExchangeError is the single failure type surfaced by every adapter
// operation. Callers branch on Kind, never on the message text.
type ExchangeError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *ExchangeError) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *ExchangeError) Unwrap() error { return e.Err }

func NewTransientError(msg string, cause error) *ExchangeError {
	return &ExchangeError{Kind: ErrTransient, Msg: msg, Err: cause}
}

func NewPermanentError(msg string, cause error) *ExchangeError {
	return &ExchangeError{Kind: ErrPermanent, Msg: msg, Err: cause}
}

func NewConfigError(msg string, cause error) *ExchangeError {
	return &ExchangeError{Kind: ErrConfig, Msg: msg, Err: cause}
}

// AsExchangeError unwraps err to the classified failure, if any.
func AsExchangeError(err error) (*ExchangeError, bool) {
	var exErr *ExchangeError
	if err == nil || !errors.As(err, &exErr) {
		return nil, false
	}
	return exErr, true
}

func IsTransient(err error) bool { return hasKind(err, ErrTransient) }

// IsPermanent reports whether err is classified permanent. Unclassified
// errors are not reported as permanent here; adapters must classify every
// failure before returning it.
func IsPermanent(err error) bool { return hasKind(err, ErrPermanent) }

func IsConfig(err error) bool { return hasKind(err, ErrConfig) }

func hasKind(err error, kind ErrorKind) bool {
	exErr, ok := AsExchangeError(err)
	return ok && exErr.Kind == kind
}
