package errs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestFromGRPC(t *testing.T) {
	assert.ErrorIs(t, FromGRPC(status.Error(codes.Unauthenticated, "key")), ErrProviderRejected)
	assert.ErrorIs(t, FromGRPC(status.Error(codes.InvalidArgument, "bad")), ErrProviderRejected)
	assert.ErrorIs(t, FromGRPC(status.Error(codes.ResourceExhausted, "quota")), ErrProviderUnavailable)
	assert.ErrorIs(t, FromGRPC(status.Error(codes.Unavailable, "down")), ErrProviderUnavailable)
	assert.ErrorIs(t, FromGRPC(errors.New("dial tcp")), ErrProviderUnavailable)
	assert.False(t, Transient(FromGRPC(context.Canceled)))
	assert.False(t, Transient(FromGRPC(status.Error(codes.Canceled, "gone"))))
	assert.NoError(t, FromGRPC(nil))
}
