package thresholds

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydroward/damtwin/internal/auth"
	"github.com/hydroward/damtwin/internal/ciphertext"
)

const operatorAddr = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func handle(t *testing.T, fill string) ciphertext.Handle {
	t.Helper()
	h, err := ciphertext.Parse("0x" + strings.Repeat(fill, ciphertext.HandleSize))
	require.NoError(t, err)
	return h
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	return NewService(NewMemoryStore(), auth.NewOperatorSet([]string{operatorAddr}), nil)
}

func TestInitialize_Once(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	require.NoError(t, svc.Initialize(ctx, handle(t, "01"), handle(t, "02")))

	snap, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Version)
	assert.Equal(t, handle(t, "01"), snap.Seepage)
	assert.Equal(t, handle(t, "02"), snap.Deformation)

	// Second initialize fails.
	assert.ErrorIs(t, svc.Initialize(ctx, handle(t, "03"), handle(t, "04")), ErrAlreadyInitialized)

	// And leaves the originals untouched.
	snap, err = svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, handle(t, "01"), snap.Seepage)
}

func TestCurrent_BeforeInitialize(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Current(context.Background())
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestUpdate_RequiresOperator(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	require.NoError(t, svc.Initialize(ctx, handle(t, "01"), handle(t, "02")))

	_, err := svc.Update(ctx, "0xcccccccccccccccccccccccccccccccccccccccc", handle(t, "03"), handle(t, "04"))
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = svc.Update(ctx, "", handle(t, "03"), handle(t, "04"))
	assert.ErrorIs(t, err, ErrUnauthorized)

	// State unchanged after rejections.
	snap, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.Version)
	assert.Equal(t, handle(t, "01"), snap.Seepage)
}

func TestUpdate_ReplacesBothAndBumpsVersion(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	require.NoError(t, svc.Initialize(ctx, handle(t, "01"), handle(t, "02")))

	snap, err := svc.Update(ctx, operatorAddr, handle(t, "03"), handle(t, "04"))
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.Version)

	current, err := svc.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, handle(t, "03"), current.Seepage)
	assert.Equal(t, handle(t, "04"), current.Deformation)
	assert.Equal(t, int64(2), current.Version)
}

func TestUpdate_BeforeInitialize(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Update(context.Background(), operatorAddr, handle(t, "03"), handle(t, "04"))
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestSnapshot_IsACopy(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)
	require.NoError(t, svc.Initialize(ctx, handle(t, "01"), handle(t, "02")))

	before, err := svc.Current(ctx)
	require.NoError(t, err)

	_, err = svc.Update(ctx, operatorAddr, handle(t, "05"), handle(t, "06"))
	require.NoError(t, err)

	// The earlier snapshot still holds the pre-update values.
	assert.Equal(t, handle(t, "01"), before.Seepage)
	assert.Equal(t, int64(1), before.Version)
}
