package errors_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	svcErr "github.com/oggyb/matchbot/internal/errors"
)

func TestMap(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"gorm not found", gorm.ErrRecordNotFound, codes.NotFound},
		{"wrapped not found", fmt.Errorf("profile 7: %w", svcErr.ErrNotFound), codes.NotFound},
		{"invalid input", fmt.Errorf("age 17: %w", svcErr.ErrInvalidInput), codes.InvalidArgument},
		{"conflict", fmt.Errorf("profile exists: %w", svcErr.ErrConflict), codes.AlreadyExists},
		{"unavailable", svcErr.ErrUnavailable, codes.Unavailable},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"canceled", context.Canceled, codes.Canceled},
		{"unknown", fmt.Errorf("boom"), codes.Internal},
		{"already a status", status.Error(codes.PermissionDenied, "no"), codes.PermissionDenied},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, status.Code(svcErr.Map(tc.err)))
		})
	}

	assert.NoError(t, svcErr.Map(nil))
}

func TestNotFound(t *testing.T) {
	assert.ErrorIs(t, svcErr.NotFound(gorm.ErrRecordNotFound), svcErr.ErrNotFound)

	other := fmt.Errorf("disk on fire")
	assert.Equal(t, other, svcErr.NotFound(other))
	assert.NoError(t, svcErr.NotFound(nil))
}
