package server

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	svcErr "github.com/oggyb/matchbot/internal/errors"
)

// TokenAuthInterceptor accepts calls whose "authorization: Bearer <token>"
// metadata matches the bcrypt hash.
func TokenAuthInterceptor(hash string) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		token, ok := bearerToken(ctx)
		if !ok {
			return nil, svcErr.Unauthenticated("missing bearer token")
		}
		if bcrypt.CompareHashAndPassword([]byte(hash), []byte(token)) != nil {
			return nil, svcErr.Unauthenticated("invalid token")
		}
		return handler(ctx, req)
	}
}

func bearerToken(ctx context.Context) (string, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return "", false
	}
	for _, v := range md.Get("authorization") {
		if token, found := strings.CutPrefix(v, "Bearer "); found && token != "" {
			return token, true
		}
	}
	return "", false
}

// HashToken returns the bcrypt hash to put into ADMIN_TOKEN_HASH.
func HashToken(token string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	return string(b), err
}
