package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitInvalidURL(t *testing.T) {
	err := Init("://invalid-url", "")
	assert.Error(t, err)
}

func TestInitWithMiniredis(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, Init("redis://"+mr.Addr(), ""))
	t.Cleanup(func() { _ = Close() })

	require.NotNil(t, GetClient())
	require.NoError(t, GetClient().Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestNewClientPingFailure(t *testing.T) {
	orig := pingClient
	t.Cleanup(func() { pingClient = orig })
	pingClient = func(context.Context, *goredis.Client) error { return errors.New("redis down") }

	c, err := NewClient("redis://127.0.0.1:6379", "")
	assert.Nil(t, c)
	assert.EqualError(t, err, "redis down")
}

func TestPingClientAgainstUnreachableRedis(t *testing.T) {
	c := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	assert.Error(t, pingClient(ctx, c))
}

func TestSetClientAndClose(t *testing.T) {
	cli := goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"})
	SetClient(cli)
	assert.Same(t, cli, GetClient())
	assert.NoError(t, Close())
	assert.Nil(t, GetClient())
	assert.NoError(t, Close())
}
