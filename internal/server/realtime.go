package server

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	RealtimeEventLikeChanged     = "like-change"
	RealtimeEventFavoriteChanged = "favorite-change"
	RealtimeEventCommentChanged  = "comment-change"
	realtimeEventHeartbeat       = "heartbeat"
	realtimeEventReady           = "ready"
	realtimeSourceBackend        = "vidstream-backend"
)

// RealtimeMessage describes one interaction change fanned out to stream subscribers.
type RealtimeMessage struct {
	UserID    int64
	EventType string
	VideoID   int64
	CommentID int64
	Active    bool
	Timestamp time.Time
}

type realtimeEventPayload struct {
	UserID    int64  `json:"userId"`
	VideoID   int64  `json:"videoId"`
	CommentID int64  `json:"commentId,omitempty"`
	Active    bool   `json:"active"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
}

// RealtimeDispatcher fans messages out to per-user subscriber channels. Slow subscribers
// drop messages instead of blocking publishers.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
}

type realtimeSubscriber struct {
	id     int64
	stream chan RealtimeMessage
}

func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[int64]map[int64]*realtimeSubscriber),
		bufferSize:  16,
	}
}

// Subscribe registers a subscriber for the user until ctx ends or cleanup is called.
func (d *RealtimeDispatcher) Subscribe(ctx context.Context, userID int64) (<-chan RealtimeMessage, func()) {
	if userID <= 0 {
		ch := make(chan RealtimeMessage)
		close(ch)
		return ch, func() {}
	}
	subscriber := &realtimeSubscriber{
		id:     d.nextSequence(),
		stream: make(chan RealtimeMessage, d.bufferSize),
	}
	d.registerSubscriber(userID, subscriber)
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.unregisterSubscriber(userID, subscriber.id)
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish delivers the message to the subscribers of message.UserID.
func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	if message.UserID <= 0 || message.EventType == "" {
		return
	}
	d.mu.RLock()
	subscribers := d.subscribers[message.UserID]
	copies := make([]*realtimeSubscriber, 0, len(subscribers))
	for _, subscriber := range subscribers {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	deliver(copies, message)
}

// Broadcast delivers the message to every subscriber.
func (d *RealtimeDispatcher) Broadcast(message RealtimeMessage) {
	if message.EventType == "" {
		return
	}
	d.mu.RLock()
	copies := make([]*realtimeSubscriber, 0)
	for _, subscribers := range d.subscribers {
		for _, subscriber := range subscribers {
			copies = append(copies, subscriber)
		}
	}
	d.mu.RUnlock()
	deliver(copies, message)
}

func deliver(subscribers []*realtimeSubscriber, message RealtimeMessage) {
	for _, subscriber := range subscribers {
		select {
		case subscriber.stream <- message:
		default:
		}
	}
}

func (d *RealtimeDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *RealtimeDispatcher) registerSubscriber(userID int64, subscriber *realtimeSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[userID]; !ok {
		d.subscribers[userID] = make(map[int64]*realtimeSubscriber)
	}
	d.subscribers[userID][subscriber.id] = subscriber
}

func (d *RealtimeDispatcher) unregisterSubscriber(userID, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[userID]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, userID)
		}
	}
	d.mu.Unlock()
}

func (h *httpHandler) handleEventStream(c *gin.Context) {
	userID, ok := authenticatedUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "auth.missing_subject"})
		return
	}

	ctx := c.Request.Context()
	stream, cleanup := h.realtime.Subscribe(ctx, userID)
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.SSEvent(realtimeEventReady, gin.H{"source": realtimeSourceBackend, "userId": userID})
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	h.logger.Debug("realtime stream opened", zap.Int64("user_id", userID))
	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case message, open := <-stream:
			if !open {
				return false
			}
			c.SSEvent(message.EventType, realtimeEventPayload{
				UserID:    message.UserID,
				VideoID:   message.VideoID,
				CommentID: message.CommentID,
				Active:    message.Active,
				Timestamp: message.Timestamp.UTC().Format(time.RFC3339Nano),
				Source:    realtimeSourceBackend,
			})
			return true
		case tick := <-ticker.C:
			c.SSEvent(realtimeEventHeartbeat, gin.H{"source": realtimeSourceBackend, "timestamp": tick.UTC().Format(time.RFC3339)})
			return true
		}
	})
	h.logger.Debug("realtime stream closed", zap.Int64("user_id", userID))
}
