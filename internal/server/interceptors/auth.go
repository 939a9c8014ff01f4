package interceptors

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/saha-club/bookingservice/internal/auth"
	"github.com/saha-club/bookingservice/internal/log"
)

// AuthInterceptor authenticates requests via the configured token
// validator. Whitelisted methods (health checks, reflection) skip
// authentication.
type AuthInterceptor struct {
	validator   auth.Validator
	whitelisted map[string]bool
}

// NewAuthInterceptor creates a new authentication interceptor
func NewAuthInterceptor(validator auth.Validator, whitelistedMethods []string) *AuthInterceptor {
	whitelisted := make(map[string]bool, len(whitelistedMethods))
	for _, m := range whitelistedMethods {
		whitelisted[m] = true
	}
	return &AuthInterceptor{
		validator:   validator,
		whitelisted: whitelisted,
	}
}

// Unary returns a unary interceptor for authentication
func (i *AuthInterceptor) Unary() grpc.UnaryServerInterceptor {
	return func(
		ctx context.Context,
		req interface{},
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (interface{}, error) {
		if i.whitelisted[info.FullMethod] {
			return handler(ctx, req)
		}
		ctx, err := i.authenticate(ctx)
		if err != nil {
			return nil, err
		}
		return handler(ctx, req)
	}
}

// Stream returns a stream interceptor for authentication
func (i *AuthInterceptor) Stream() grpc.StreamServerInterceptor {
	return func(
		srv interface{},
		stream grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		if i.whitelisted[info.FullMethod] {
			return handler(srv, stream)
		}
		ctx, err := i.authenticate(stream.Context())
		if err != nil {
			return err
		}
		return handler(srv, &wrappedServerStream{ServerStream: stream, ctx: ctx})
	}
}

// authenticate validates the bearer token and stamps the user ID onto
// the context for downstream handlers and logging.
func (i *AuthInterceptor) authenticate(ctx context.Context) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return nil, status.Errorf(codes.Unauthenticated, "metadata is not provided")
	}

	authHeader := md.Get("authorization")
	if len(authHeader) == 0 {
		return nil, status.Errorf(codes.Unauthenticated, "authorization token is not provided")
	}

	token := auth.ExtractTokenFromAuthHeader(authHeader[0])
	userID, err := i.validator.Validate(ctx, token)
	if err != nil {
		return nil, status.Errorf(codes.Unauthenticated, "invalid authorization token")
	}

	return log.WithUserID(ctx, userID), nil
}

// UserID returns the authenticated user ID stamped by the interceptor.
func UserID(ctx context.Context) string {
	if userID, ok := ctx.Value(log.UserIDKey).(string); ok {
		return userID
	}
	return ""
}
