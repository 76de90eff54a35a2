package command

import "errors"

const (
	// MessageInvalidData is the fixed message of every validation failure.
	MessageInvalidData = "invalid data"
	// MessageAccepted answers a deferred command whose outcome follows later.
	MessageAccepted = "request accepted"
	// MessageInternalError hides unexpected failures from the sender.
	MessageInternalError = "internal error while processing request"
	// MessageUnsupported answers kinds without a bound command.
	MessageUnsupported = "operation not supported"

	messageFailed = "operation failed"
)

// Result is the outcome of a command.
//
// Invariants:
//   - Success implies Errors is empty.
//   - A failure always carries a non-empty Message.
type Result struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Payload any      `json:"payload,omitempty"`
	Errors  []string `json:"errors,omitempty"`

	// Deferred marks an accepted request whose outcome is published later.
	Deferred bool `json:"-"`
}

// OK builds a successful result.
func OK(message string, payload any) Result {
	return Result{Success: true, Message: message, Payload: payload}
}

// Accepted builds the immediate answer of a deferred command.
func Accepted() Result {
	return Result{Success: true, Message: MessageAccepted, Deferred: true}
}

// Fail builds a failed result. An empty message is replaced so the
// failure invariant always holds.
func Fail(message string, errs ...string) Result {
	if message == "" {
		message = messageFailed
	}
	return Result{Success: false, Message: message, Errors: errs}
}

// FromError converts err into a failed result carrying its message.
func FromError(err error) Result {
	if err == nil {
		return Fail(messageFailed)
	}
	return Fail(err.Error())
}

// Normalize enforces the invariants on a result built by hand.
func (r Result) Normalize() Result {
	if r.Success {
		r.Errors = nil
		return r
	}
	if r.Message == "" {
		r.Message = messageFailed
	}
	r.Deferred = false
	return r
}

// Err returns the failure as an error, or nil on success.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	return errors.New(r.Message)
}
