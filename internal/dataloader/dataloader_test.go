package dataloader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkralStul/blog-service/internal/domain"
	"github.com/UkralStul/blog-service/internal/storage"
	"github.com/UkralStul/blog-service/internal/storage/inmemory"
)

// countingStore counts batch calls to the underlying store.
type countingStore struct {
	storage.Storage
	mu         sync.Mutex
	userCalls  int
	failGroups bool
}

func (c *countingStore) GetUsersByIDs(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	c.mu.Lock()
	c.userCalls++
	c.mu.Unlock()
	return c.Storage.GetUsersByIDs(ctx, ids)
}

func (c *countingStore) GetGroupsByIDs(ctx context.Context, ids []string) (map[string]*domain.Group, error) {
	if c.failGroups {
		return nil, errors.New("db is down")
	}
	return c.Storage.GetGroupsByIDs(ctx, ids)
}

func TestLoaders_UsersBatched(t *testing.T) {
	ctx := context.Background()
	mem := inmemory.New()
	a, err := mem.CreateUser(ctx, &domain.User{Username: "a"})
	require.NoError(t, err)
	b, err := mem.CreateUser(ctx, &domain.User{Username: "b"})
	require.NoError(t, err)

	store := &countingStore{Storage: mem}
	l := NewLoaders(store)

	users, err := l.Users(ctx, []string{a.ID, b.ID, a.ID, "missing"})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, "a", users[a.ID].Username)
	assert.Equal(t, "b", users[b.ID].Username)
	assert.Equal(t, 1, store.userCalls)

	// Повторная загрузка берётся из кэша лоадера
	_, err = l.Users(ctx, []string{a.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, store.userCalls)
}

func TestLoaders_GroupErrorPropagates(t *testing.T) {
	l := NewLoaders(&countingStore{Storage: inmemory.New(), failGroups: true})
	_, err := l.Groups(context.Background(), []string{"g1"})
	assert.Error(t, err)
}

func TestMiddleware_InjectsLoaders(t *testing.T) {
	var got *Loaders
	h := Middleware(inmemory.New(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = For(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotNil(t, got)
	assert.NotNil(t, got.UserByID)
	assert.NotNil(t, got.GroupByID)
}
