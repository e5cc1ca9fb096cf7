package errors

import "fmt"

var (
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrMustAuthenticate   = fmt.Errorf("must authenticate to perform this action")
	ErrRateLimitExceeded  = fmt.Errorf("rate limit exceeded")
	ErrInvalidCredential  = fmt.Errorf("invalid credential")
	ErrUnknownEvent       = fmt.Errorf("unknown event name")
	ErrKeyNotFound        = fmt.Errorf("key not found")
	ErrStoreUnavailable   = fmt.Errorf("store unavailable")
	ErrPersistenceFailure = fmt.Errorf("notification persistence failed")
)
