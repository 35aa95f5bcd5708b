package pipeline

import "fmt"

// GenerationError is the terminal error of a failed run. Message is meant for display.
type GenerationError struct {
	Stage   int
	Message string
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *GenerationError) Unwrap() error { return e.Err }

// NewGenerationError is used by collaborators to report a failure with a display message.
func NewGenerationError(message string, err error) *GenerationError {
	return &GenerationError{Message: message, Err: err}
}
