package server

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

func TestTokenAuthInterceptor(t *testing.T) {
	hash, err := HashToken("letmein")
	require.NoError(t, err)
	interceptor := TokenAuthInterceptor(hash)

	info := &grpc.UnaryServerInfo{FullMethod: "/matchbot.admin.v1.AdminService/ListReports"}
	handler := func(ctx context.Context, req any) (any, error) { return "ok", nil }

	call := func(md metadata.MD) (any, error) {
		ctx := context.Background()
		if md != nil {
			ctx = metadata.NewIncomingContext(ctx, md)
		}
		return interceptor(ctx, nil, info, handler)
	}

	t.Run("missing", func(t *testing.T) {
		_, err := call(nil)
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("wrong scheme", func(t *testing.T) {
		_, err := call(metadata.Pairs("authorization", "Basic letmein"))
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("wrong token", func(t *testing.T) {
		_, err := call(metadata.Pairs("authorization", "Bearer nope"))
		assert.Equal(t, codes.Unauthenticated, status.Code(err))
	})

	t.Run("valid", func(t *testing.T) {
		resp, err := call(metadata.Pairs("authorization", "Bearer letmein"))
		require.NoError(t, err)
		assert.Equal(t, "ok", resp)
	})
}
