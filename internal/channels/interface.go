package channels

import (
	"context"
	"errors"
	"fmt"
)

// SendChannel is the outbound transport boundary. The core renders a message
// and hands it off; the channel reports success, a retryable fault, or a
// fault no retry can fix.
type SendChannel interface {
	Send(ctx context.Context, recipient, subject, htmlBody, textBody string) error
}

// TransientError marks a delivery fault worth retrying (timeouts, provider
// 5xx, rate limiting)
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient send failure: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PermanentError marks a delivery fault retrying cannot fix (invalid
// recipient, rejected content)
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent send failure: %v", e.Err)
}

func (e *PermanentError) Unwrap() error { return e.Err }

// IsPermanent reports whether the error is a PermanentError
func IsPermanent(err error) bool {
	var perm *PermanentError
	return errors.As(err, &perm)
}
