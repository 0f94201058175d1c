package checkpoint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRedisClient is a testify mock of the Redis commands the store issues.
type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	args := m.Called(ctx, keys)
	cmd := redis.NewIntCmd(ctx)
	if err := args.Error(1); err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(args.Get(0).(int64))
	}
	return cmd
}

func (m *MockRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	cmd := redis.NewStringCmd(ctx)
	if err := args.Error(1); err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal(args.String(0))
	}
	return cmd
}

func (m *MockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	cmd := redis.NewStatusCmd(ctx)
	if err := args.Error(0); err != nil {
		cmd.SetErr(err)
	} else {
		cmd.SetVal("OK")
	}
	return cmd
}

func TestRedisStoreNamespacesKeysByRunDate(t *testing.T) {
	ctx := context.Background()
	client := new(MockRedisClient)
	client.On("Exists", ctx, []string{"checkpoint:unit:20250309:Honda_2004_Accord_engine"}).Return(int64(1), nil)

	store := NewRedisStore(client, "20250309")
	has, err := store.Has(ctx, "Honda_2004_Accord_engine")
	require.NoError(t, err)
	assert.True(t, has)
	client.AssertExpectations(t)
}

func TestRedisStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := new(MockRedisClient)
	store := NewRedisStore(client, "")

	var stored []byte
	client.On("Set", ctx, "checkpoint:unit:k", mock.Anything, time.Duration(0)).
		Run(func(args mock.Arguments) { stored = args.Get(2).([]byte) }).
		Return(nil)

	want := sampleResult(2)
	require.NoError(t, store.Save(ctx, "k", want))
	require.NotEmpty(t, stored)

	client.On("Get", ctx, "checkpoint:unit:k").Return(string(stored), nil)
	got, err := store.Load(ctx, "k")
	require.NoError(t, err)
	assert.Len(t, got.Records, 2)
	assert.Equal(t, want.BytesTransferred, got.BytesTransferred)
	client.AssertExpectations(t)
}

func TestRedisStoreMissingKey(t *testing.T) {
	ctx := context.Background()
	client := new(MockRedisClient)
	client.On("Get", ctx, "checkpoint:unit:missing").Return("", redis.Nil)

	_, err := NewRedisStore(client, "").Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStorePropagatesErrors(t *testing.T) {
	ctx := context.Background()
	client := new(MockRedisClient)
	boom := errors.New("connection refused")
	client.On("Exists", ctx, []string{"checkpoint:unit:k"}).Return(int64(0), boom)
	client.On("Set", ctx, "checkpoint:unit:k", mock.Anything, time.Duration(0)).Return(boom)

	store := NewRedisStore(client, "")
	_, err := store.Has(ctx, "k")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, store.Save(ctx, "k", sampleResult(1)), boom)
}
