package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPost_String(t *testing.T) {
	p := Post{Text: "Тестовый пост с длинным текстом"}
	assert.Equal(t, "Тестовый пост с", p.String())

	short := Post{Text: "short"}
	assert.Equal(t, "short", short.String())
}

func TestGroup_String(t *testing.T) {
	g := Group{Title: "Тестовая группа", Slug: "test"}
	assert.Equal(t, "Тестовая группа", g.String())
}

func TestBeforeCreate_AssignsIDOnce(t *testing.T) {
	p := &Post{}
	assert.NoError(t, p.BeforeCreate(nil))
	assert.NotEmpty(t, p.ID)

	id := p.ID
	assert.NoError(t, p.BeforeCreate(nil))
	assert.Equal(t, id, p.ID)
}
