package main

import (
	"context"

	"github.com/UkralStul/blog-service/internal/auth"
	"github.com/UkralStul/blog-service/internal/domain"
	"github.com/UkralStul/blog-service/internal/logging"
	"github.com/UkralStul/blog-service/internal/service"
	"github.com/UkralStul/blog-service/internal/storage"
)

// fillWithMockData seeds the in-memory store and logs a token per user so
// the protected routes can be tried right away.
func fillWithMockData(
	ctx context.Context,
	s storage.Storage,
	content *service.ContentService,
	follows *service.FollowService,
	users *service.UserService,
	tokens *auth.Manager,
) {
	l := logging.L()

	// 1. Пользователи
	leo, err := users.EnsureUser(ctx, "leo", "Лев Толстой")
	if err != nil {
		l.Fatal().Err(err).Msg("fillWithMockData: failed to create user leo")
	}
	anna, err := users.EnsureUser(ctx, "anna", "Анна Ахматова")
	if err != nil {
		l.Fatal().Err(err).Msg("fillWithMockData: failed to create user anna")
	}

	// 2. Группа
	group, err := s.CreateGroup(ctx, &domain.Group{
		Title:       "Лев Толстой – зеркало русской революции",
		Slug:        "tolstoy",
		Description: "Группа поклонников графа.",
	})
	if err != nil {
		l.Fatal().Err(err).Msg("fillWithMockData: failed to create group")
	}

	// 3. Посты: один в группе, один без группы
	post, err := content.CreatePost(ctx, leo.ID, service.PostInput{
		Text:    "Все счастливые семьи похожи друг на друга, каждая несчастливая семья несчастлива по-своему.",
		GroupID: group.ID,
	})
	if err != nil {
		l.Fatal().Err(err).Msg("fillWithMockData: failed to create post")
	}
	if _, err := content.CreatePost(ctx, anna.ID, service.PostInput{
		Text: "Мне ни к чему одические рати и прелесть элегических затей.",
	}); err != nil {
		l.Fatal().Err(err).Msg("fillWithMockData: failed to create second post")
	}

	// 4. Комментарий и подписка
	if _, err := content.CreateComment(ctx, post.ID, anna.ID, service.CommentInput{
		Text: "Отличное начало романа!",
	}); err != nil {
		l.Fatal().Err(err).Msg("fillWithMockData: failed to create comment")
	}
	if err := follows.Follow(ctx, anna.ID, leo.Username); err != nil {
		l.Fatal().Err(err).Msg("fillWithMockData: failed to follow")
	}

	for _, u := range []*domain.User{leo, anna} {
		token, err := tokens.Issue(u.Username, u.DisplayName)
		if err != nil {
			l.Fatal().Err(err).Msg("fillWithMockData: failed to issue token")
		}
		l.Info().Str(logging.FieldUsername, u.Username).Str("token", token).Msg("dev token")
	}

	l.Info().Str(logging.FieldPostID, post.ID).Str(logging.FieldGroup, group.Slug).Msg("mock data filled successfully")
}
