package interceptors

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/saha-club/bookingservice/internal/log"
	"github.com/saha-club/bookingservice/internal/metrics"
)

// LoggingInterceptor provides request logging middleware for gRPC
type LoggingInterceptor struct{}

// NewLoggingInterceptor creates a new logging interceptor
func NewLoggingInterceptor() *LoggingInterceptor {
	return &LoggingInterceptor{}
}

// Unary returns a unary interceptor for request logging
func (i *LoggingInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		start := time.Now()

		requestID := uuid.New().String()
		ctx = log.WithRequestID(ctx, requestID)

		log.Debug(ctx, "gRPC request started",
			zap.String("method", info.FullMethod))

		resp, err := handler(ctx, req)

		duration := time.Since(start)
		code := codes.OK
		if err != nil {
			st, _ := status.FromError(err)
			code = st.Code()
			log.Error(ctx, "gRPC request failed",
				zap.String("method", info.FullMethod),
				zap.Duration("duration", duration),
				zap.String("code", code.String()),
				zap.String("error", st.Message()))
		} else {
			log.Info(ctx, "gRPC request completed",
				zap.String("method", info.FullMethod),
				zap.Duration("duration", duration),
				zap.String("code", code.String()))
		}
		metrics.RecordGRPCRequest(info.FullMethod, code.String(), duration)

		return resp, err
	}
}

// Stream returns a stream interceptor for request logging
func (i *LoggingInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		stream grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		start := time.Now()

		requestID := uuid.New().String()
		ctx := log.WithRequestID(stream.Context(), requestID)

		err := handler(srv, &wrappedServerStream{ServerStream: stream, ctx: ctx})

		duration := time.Since(start)
		code := codes.OK
		if err != nil {
			st, _ := status.FromError(err)
			code = st.Code()
			log.Error(ctx, "gRPC stream failed",
				zap.String("method", info.FullMethod),
				zap.Duration("duration", duration),
				zap.String("code", code.String()),
				zap.String("error", st.Message()))
		} else {
			log.Info(ctx, "gRPC stream completed",
				zap.String("method", info.FullMethod),
				zap.Duration("duration", duration),
				zap.String("code", code.String()))
		}
		metrics.RecordGRPCRequest(info.FullMethod, code.String(), duration)

		return err
	}
}

// wrappedServerStream wraps grpc.ServerStream to provide a custom context
type wrappedServerStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapped context
func (w *wrappedServerStream) Context() context.Context {
	return w.ctx
}
