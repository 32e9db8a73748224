package api

import (
	"context"
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/miradorstack/mirador-forecast/internal/engine"
	"github.com/miradorstack/mirador-forecast/internal/models"
)

// StatusCode classifies a batch failure for gRPC callers.
func StatusCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	if s, ok := status.FromError(err); ok {
		return s.Code()
	}
	switch {
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, models.ErrBatchTooLarge):
		return codes.ResourceExhausted
	case errors.Is(err, models.ErrInvalidRecord),
		errors.Is(err, engine.ErrParse),
		errors.Is(err, engine.ErrComputation),
		errors.Is(err, engine.ErrMissingColumn),
		errors.Is(err, engine.ErrUnknownCategory):
		return codes.InvalidArgument
	case errors.Is(err, engine.ErrModel):
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// StatusError converts err into a gRPC status error.
func StatusError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(StatusCode(err), err.Error())
}

// HTTPStatus classifies a batch failure for HTTP callers.
func HTTPStatus(err error) int {
	switch StatusCode(err) {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument:
		return http.StatusUnprocessableEntity
	case codes.ResourceExhausted:
		return http.StatusRequestEntityTooLarge
	case codes.Canceled:
		return 499
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Unavailable:
		return http.StatusBadGateway
	case codes.FailedPrecondition:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
