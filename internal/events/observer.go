package events

import (
	"sync"

	"github.com/google/uuid"

	"github.com/UkralStul/blog-service/internal/domain"
)

const subscriberBuffer = 16

// CommentObserver хранит каналы для подписчиков на комментарии.
type CommentObserver struct {
	mu sync.RWMutex
	//          map[postID] map[subscriberID] channel
	subs map[string]map[string]chan *domain.Comment
}

// NewCommentObserver - конструктор для нашего наблюдателя.
func NewCommentObserver() *CommentObserver {
	return &CommentObserver{
		subs: make(map[string]map[string]chan *domain.Comment),
	}
}

// Subscribe registers a listener for new comments on postID.
func (o *CommentObserver) Subscribe(postID string) (string, <-chan *domain.Comment) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := uuid.NewString()
	ch := make(chan *domain.Comment, subscriberBuffer)
	if _, ok := o.subs[postID]; !ok {
		o.subs[postID] = make(map[string]chan *domain.Comment)
	}
	o.subs[postID][id] = ch
	return id, ch
}

// Unsubscribe removes the listener and closes its channel.
func (o *CommentObserver) Unsubscribe(postID, id string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	postSubs, ok := o.subs[postID]
	if !ok {
		return
	}
	if ch, ok := postSubs[id]; ok {
		close(ch)
		delete(postSubs, id)
	}
	if len(postSubs) == 0 {
		delete(o.subs, postID)
	}
}

// Notify hands the comment to every subscriber of its post. It never blocks:
// a subscriber whose buffer is full misses the comment.
func (o *CommentObserver) Notify(c *domain.Comment) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	for _, ch := range o.subs[c.PostID] {
		select {
		case ch <- c:
		default:
			// Клиент не успевает читать, пропускаем
		}
	}
}

// Subscribers returns the number of listeners on postID.
func (o *CommentObserver) Subscribers(postID string) int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.subs[postID])
}
