package dataloader

import (
	"context"
	"net/http"
	"time"

	"github.com/graph-gophers/dataloader"

	"github.com/UkralStul/blog-service/internal/domain"
	"github.com/UkralStul/blog-service/internal/storage"
)

type contextKey string

const key = contextKey("dataloaders")

// Loaders содержит все дата-лоадеры приложения.
type Loaders struct {
	UserByID  *dataloader.Loader
	GroupByID *dataloader.Loader
}

// NewLoaders creates request-scoped loaders backed by store.
func NewLoaders(store storage.Storage) *Loaders {
	return &Loaders{
		UserByID:  dataloader.NewBatchedLoader(batch(store.GetUsersByIDs), dataloader.WithWait(time.Millisecond*1)),
		GroupByID: dataloader.NewBatchedLoader(batch(store.GetGroupsByIDs), dataloader.WithWait(time.Millisecond*1)),
	}
}

// batch adapts a "load many by id" store method to a dataloader batch
// function. Missing ids resolve to nil without an error.
func batch[T any](fetch func(ctx context.Context, ids []string) (map[string]T, error)) dataloader.BatchFunc {
	return func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		// Преобразуем ключи в []string
		ids := keys.Keys()

		// Вызываем метод хранилища, который делает ОДИН запрос к БД
		found, err := fetch(ctx, ids)
		results := make([]*dataloader.Result, len(keys))
		if err != nil {
			// В случае ошибки, возвращаем ее для всех ключей
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		// Формируем результат в том же порядке, что и ключи
		for i, id := range ids {
			if v, ok := found[id]; ok {
				results[i] = &dataloader.Result{Data: v}
			} else {
				results[i] = &dataloader.Result{}
			}
		}
		return results
	}
}

// Middleware для внедрения лоадеров в контекст запроса.
func Middleware(store storage.Storage, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := WithLoaders(r.Context(), NewLoaders(store))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithLoaders puts loaders into ctx.
func WithLoaders(ctx context.Context, l *Loaders) context.Context {
	return context.WithValue(ctx, key, l)
}

// For извлекает лоадеры из контекста.
func For(ctx context.Context) *Loaders {
	return ctx.Value(key).(*Loaders)
}

// Users resolves many users in one batch. Unknown ids are absent from the
// result.
func (l *Loaders) Users(ctx context.Context, ids []string) (map[string]*domain.User, error) {
	return loadMany[*domain.User](ctx, l.UserByID, ids)
}

// Groups resolves many groups in one batch.
func (l *Loaders) Groups(ctx context.Context, ids []string) (map[string]*domain.Group, error) {
	return loadMany[*domain.Group](ctx, l.GroupByID, ids)
}

func loadMany[T any](ctx context.Context, loader *dataloader.Loader, ids []string) (map[string]T, error) {
	out := make(map[string]T, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	values, errs := loader.LoadMany(ctx, dataloader.NewKeysFromStrings(ids))()
	for i, id := range ids {
		if i < len(errs) && errs[i] != nil {
			return nil, errs[i]
		}
		if v, ok := values[i].(T); ok {
			out[id] = v
		}
	}
	return out, nil
}
