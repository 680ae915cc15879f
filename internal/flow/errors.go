package flow

import (
	"errors"

	"github.com/thienng-it/note-hub-sub001/pkg/notehubsdk"
)

// GenericErrorMessage is shown for failures that carry no message of their
// own.
const GenericErrorMessage = "An unexpected error occurred"

// ErrFlowDiscarded is returned by Dispatch once the flow has been discarded.
var ErrFlowDiscarded = errors.New("flow: discarded")

// ValidationError is a problem found before anything was sent.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) error { return &ValidationError{Message: msg} }

// DisplayMessage converts err into the text a form shows. Validation
// messages and messages from the service are returned as they are;
// everything else, including transport failures, becomes
// GenericErrorMessage.
func DisplayMessage(err error) string {
	if err == nil {
		return ""
	}

	var vErr *ValidationError
	if errors.As(err, &vErr) {
		return vErr.Message
	}

	var apiErr *notehubsdk.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}

	return GenericErrorMessage
}
