package interceptors

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/saha-club/bookingservice/internal/booking/domain"
	"github.com/saha-club/bookingservice/internal/log"
)

// ErrorHandlerInterceptor converts domain errors into gRPC status codes
// at the server boundary so handlers can return plain domain errors.
type ErrorHandlerInterceptor struct{}

// NewErrorHandlerInterceptor creates a new error handler interceptor
func NewErrorHandlerInterceptor() *ErrorHandlerInterceptor {
	return &ErrorHandlerInterceptor{}
}

// Unary returns a unary interceptor for error handling
func (i *ErrorHandlerInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		resp, err := handler(ctx, req)
		if err != nil {
			return resp, i.handleError(ctx, err, info.FullMethod)
		}
		return resp, nil
	}
}

// Stream returns a stream interceptor for error handling
func (i *ErrorHandlerInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		stream grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if err := handler(srv, stream); err != nil {
			return i.handleError(stream.Context(), err, info.FullMethod)
		}
		return nil
	}
}

// handleError maps errors to gRPC status codes. Slot conflicts surface as
// ABORTED so well-behaved clients retry with a different slot rather than
// hammering the same one.
func (i *ErrorHandlerInterceptor) handleError(ctx context.Context, err error, method string) error {
	if err == nil {
		return nil
	}

	log.Error(ctx, "Error occurred in gRPC method",
		zap.String("method", method),
		zap.Error(err))

	// Already a gRPC status error.
	if _, ok := status.FromError(err); ok && !domain.IsDomainError(err) {
		return err
	}

	if domainErr := domain.GetDomainError(err); domainErr != nil {
		return status.Errorf(codeFor(domainErr.Code), "%s", domainErr.Error())
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.DeadlineExceeded, "request timeout")
	case errors.Is(err, context.Canceled):
		return status.Errorf(codes.Canceled, "request canceled")
	}

	return status.Errorf(codes.Internal, "internal server error")
}

func codeFor(domainCode string) codes.Code {
	switch domainCode {
	case domain.ErrCodeNotFound:
		return codes.NotFound
	case domain.ErrCodeSlotConflict:
		return codes.Aborted
	case domain.ErrCodeLockTimeout:
		return codes.Aborted
	case domain.ErrCodeResourceUnavailable:
		return codes.FailedPrecondition
	case domain.ErrCodeInsufficientBalance,
		domain.ErrCodeTierMismatch,
		domain.ErrCodeDailyCapExceeded,
		domain.ErrCodeInstrumentExpired,
		domain.ErrCodeInstrumentExhausted:
		return codes.FailedPrecondition
	case domain.ErrCodeInvalidDuration, domain.ErrCodeInvalidPlayerCount:
		return codes.InvalidArgument
	case domain.ErrCodeInvalidTransition:
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}
