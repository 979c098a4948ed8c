package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/contacttrace/internal/common"
	"github.com/dmitrijs2005/contacttrace/internal/rpcx"
	"github.com/dmitrijs2005/contacttrace/internal/server/auth"
	"github.com/dmitrijs2005/contacttrace/internal/server/commands"
)

type ctxKey string

// ProfileIDKey holds the authenticated profile id in the request context.
const ProfileIDKey ctxKey = "profileID"

// ProfileIDFromContext returns the profile authenticated by the interceptor.
func ProfileIDFromContext(ctx context.Context) (uint32, bool) {
	id, ok := ctx.Value(ProfileIDKey).(uint32)
	return id, ok
}

// unauthenticated lists methods callable without a token.
var unauthenticated = map[string]bool{
	rpcx.FullMethod(rpcx.MethodCreateProfile): true,
}

// accessTokenInterceptor requires a valid token on every method except
// profile creation, and rejects commands addressed to another profile.
func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {

	if unauthenticated[info.FullMethod] {
		return handler(ctx, req)
	}

	var accessToken string
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		values := md.Get(common.AccessTokenHeaderName)
		if len(values) > 0 {
			accessToken = values[0]
		}
	}
	if len(accessToken) == 0 {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	profileID, err := s.tokens.Verify(accessToken)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, status.Error(codes.Unauthenticated, auth.ErrTokenExpired.Error())
		}
		return nil, status.Error(codes.Unauthenticated, "invalid token")
	}

	if owner, ok := ownerOf(req); ok && owner != profileID {
		s.logger.Warn(ctx, "token does not match command profile", "method", info.FullMethod)
		return nil, status.Error(codes.PermissionDenied, "token does not match profile")
	}

	ctx = context.WithValue(ctx, ProfileIDKey, profileID)
	return handler(ctx, req)
}

func ownerOf(req any) (uint32, bool) {
	switch c := req.(type) {
	case commands.UpdatePushTokenCommand:
		return c.ProfileID, true
	case commands.ReportLocationCommand:
		return c.ProfileID, true
	case commands.AddContactsCommand:
		return c.ProfileID, true
	case commands.ClearContactLocationCommand:
		return c.ProfileID, true
	case commands.ExportContactsCommand:
		return c.ProfileID, true
	default:
		return 0, false
	}
}
