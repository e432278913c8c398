package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"school-service/internal/mocks"
	"school-service/internal/models"
)

func setupCache(t *testing.T) (*CachedDirectory, *mocks.UserDirectoryMock, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	upstream := new(mocks.UserDirectoryMock)
	return NewCachedDirectory(upstream, client, time.Minute), upstream, mr
}

func TestCachedDirectoryFetchesMissesOnce(t *testing.T) {
	dir, upstream, mr := setupCache(t)
	ctx := context.Background()

	upstream.On("BulkUsers", mock.Anything, []string{"u-1", "u-2"}).
		Return([]models.UserProfile{{ID: "u-1", DisplayName: "Amina", Role: "teacher"}, {ID: "u-2", DisplayName: "Brian", Role: "parent"}}, nil).
		Once()

	first, err := dir.BulkUsers(ctx, []string{"u-1", "u-2"})
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.True(t, mr.Exists(userKeyPrefix+"u-1"))

	second, err := dir.BulkUsers(ctx, []string{"u-2", "u-1"})
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, "Brian", second[0].DisplayName)
	assert.Equal(t, "Amina", second[1].DisplayName)

	upstream.AssertExpectations(t)
}

func TestCachedDirectoryPartialHit(t *testing.T) {
	dir, upstream, mr := setupCache(t)
	ctx := context.Background()
	require.NoError(t, mr.Set(userKeyPrefix+"u-1", `{"id":"u-1","display_name":"Amina","role":"teacher"}`))

	upstream.On("BulkUsers", mock.Anything, []string{"u-3"}).
		Return([]models.UserProfile{{ID: "u-3", DisplayName: "Chege", Role: "student"}}, nil).
		Once()

	users, err := dir.BulkUsers(ctx, []string{"u-1", "u-3"})
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "u-1", users[0].ID)
	assert.Equal(t, "u-3", users[1].ID)
	upstream.AssertExpectations(t)
}

func TestCachedDirectoryExpires(t *testing.T) {
	dir, upstream, mr := setupCache(t)
	ctx := context.Background()

	upstream.On("BulkUsers", mock.Anything, []string{"u-1"}).
		Return([]models.UserProfile{{ID: "u-1"}}, nil).
		Twice()

	_, err := dir.BulkUsers(ctx, []string{"u-1"})
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = dir.BulkUsers(ctx, []string{"u-1"})
	require.NoError(t, err)

	upstream.AssertExpectations(t)
}

func TestCachedDirectoryRedisDown(t *testing.T) {
	dir, upstream, mr := setupCache(t)
	mr.Close()

	upstream.On("BulkUsers", mock.Anything, []string{"u-1"}).
		Return([]models.UserProfile{{ID: "u-1"}}, nil).
		Once()

	users, err := dir.BulkUsers(context.Background(), []string{"u-1"})
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestCachedDirectoryUpstreamError(t *testing.T) {
	dir, upstream, _ := setupCache(t)

	upstream.On("BulkUsers", mock.Anything, []string{"u-9"}).
		Return(nil, errors.New("unavailable")).
		Once()

	_, err := dir.BulkUsers(context.Background(), []string{"u-9"})
	assert.Error(t, err)
}
