package pagination

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func items(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func TestSlice_ThirteenItems(t *testing.T) {
	p := New(10)

	first := Slice(p, items(13), "1")
	assert.Len(t, first.Items, 10)
	assert.Equal(t, 2, first.NumPages)
	assert.True(t, first.HasNext())
	assert.False(t, first.HasPrevious())

	second := Slice(p, items(13), "2")
	assert.Equal(t, []int{10, 11, 12}, second.Items)
	assert.False(t, second.HasNext())
	assert.True(t, second.HasPrevious())
}

func TestWindow_Fallbacks(t *testing.T) {
	p := New(10)

	tests := []struct {
		name   string
		total  int
		raw    string
		number int
	}{
		{"missing param", 13, "", 1},
		{"not a number", 13, "abc", 1},
		{"beyond range", 13, "99", 2},
		{"zero", 13, "0", 2},
		{"negative", 13, "-1", 2},
		{"empty collection", 0, "5", 1},
		{"exact multiple", 20, "2", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := p.Window(tt.total, tt.raw)
			assert.Equal(t, tt.number, w.Number)
			assert.Equal(t, (tt.number-1)*10, w.Offset)
		})
	}
}

func TestSlice_Empty(t *testing.T) {
	page := Slice(New(10), []string{}, "3")
	assert.Equal(t, 1, page.Number)
	assert.Equal(t, 1, page.NumPages)
	assert.Empty(t, page.Items)
}

func TestNew_DefaultSize(t *testing.T) {
	assert.Equal(t, DefaultPerPage, New(0).PerPage)
	assert.Equal(t, DefaultPerPage, Paginator{}.Window(30, "1").Limit)
}

func TestPaginate_FetchesResolvedWindow(t *testing.T) {
	var gotLimit, gotOffset int
	page, err := Paginate(context.Background(), New(10), "7",
		func(context.Context) (int, error) { return 13, nil },
		func(_ context.Context, limit, offset int) ([]int, error) {
			gotLimit, gotOffset = limit, offset
			return items(3), nil
		},
	)
	require.NoError(t, err)
	assert.Equal(t, 10, gotLimit)
	assert.Equal(t, 10, gotOffset)
	assert.Equal(t, 2, page.Number)
	assert.Equal(t, 13, page.TotalItems)
}

func TestPaginate_PropagatesErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := Paginate(context.Background(), New(10), "1",
		func(context.Context) (int, error) { return 0, boom },
		func(context.Context, int, int) ([]int, error) { return nil, nil },
	)
	assert.ErrorIs(t, err, boom)
}

func TestMap(t *testing.T) {
	page := Slice(New(2), []int{1, 2, 3}, "2")
	mapped := Map(page, func(i int) string { return string(rune('a' + i)) })
	assert.Equal(t, []string{"d"}, mapped.Items)
	assert.Equal(t, 2, mapped.Number)
}
