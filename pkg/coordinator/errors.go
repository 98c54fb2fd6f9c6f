package coordinator

import "fmt"

// UpdateFailedError is the failure signal a FetchFunc returns for expected,
// classified failures. Other errors are treated as unexpected.
type UpdateFailedError struct {
	Message string
	Err     error
}

// UpdateFailed builds an UpdateFailedError with a formatted message.
func UpdateFailed(err error, format string, args ...any) *UpdateFailedError {
	return &UpdateFailedError{
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

func (e *UpdateFailedError) Error() string {
	return e.Message
}

func (e *UpdateFailedError) Unwrap() error {
	return e.Err
}
