package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/UkralStul/blog-service/internal/domain"
	"github.com/UkralStul/blog-service/internal/logging"
)

const (
	keepAlivePingInterval = 10 * time.Second
	writeWait             = 5 * time.Second
)

// CommentStream handles GET /api/v1/posts/{postID}/comments/ws. Every new
// comment on the post is sent as a JSON CommentView until the client leaves.
func (h *Handler) CommentStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	postID := chi.URLParam(r, "postID")

	// 404 до апгрейда соединения
	if _, err := h.content.Post(ctx, postID); err != nil {
		writeError(w, r, err, nil)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade уже ответил клиенту
		return
	}
	defer conn.Close()

	l := logging.Ctx(ctx).With().Str(logging.FieldPostID, postID).Logger()

	subID, comments := h.observer.Subscribe(postID)
	// Отписываемся, когда клиент отключился
	defer h.observer.Unsubscribe(postID, subID)
	l.Debug().Str("subscriber", subID).Msg("comment stream opened")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(keepAlivePingInterval)
	defer ticker.Stop()

	for {
		select {
		case c, ok := <-comments:
			if !ok {
				return
			}
			views, err := h.commentViews(ctx, []*domain.Comment{c})
			if err != nil {
				l.Warn().Err(err).Msg("failed to render comment")
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(views[0]); err != nil {
				l.Debug().Err(err).Msg("comment stream write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			l.Debug().Str("subscriber", subID).Msg("comment stream closed")
			return
		case <-ctx.Done():
			return
		}
	}
}
