package dialogue

import (
	"fmt"

	"github.com/Prajwal-ai11002/cci-global-bot/internal/errorsx"
)

// StatusError reports a non-2xx reply from the dialogue service.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("HTTP error! status: %d (%s)", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("HTTP error! status: %d", e.StatusCode)
}

// ServiceError is a 2xx reply whose body carries an error field.
type ServiceError struct {
	Message string
}

func (e *ServiceError) Error() string { return e.Message }

func transportError(err error) error {
	return errorsx.Wrap(err, errorsx.ReasonTransport)
}
