package session

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"
)

const (
	eventLikeChanged     = "like-change"
	eventFavoriteChanged = "favorite-change"
	eventCommentChanged  = "comment-change"
)

// Event is one server-sent interaction change.
type Event struct {
	Type      string `json:"-"`
	UserID    int64  `json:"userId"`
	VideoID   int64  `json:"videoId"`
	CommentID int64  `json:"commentId"`
	Active    bool   `json:"active"`
}

// Watch consumes the backend event stream until ctx ends or the stream closes, applying
// like and favorite changes made by this user elsewhere and refetching comments when the
// current video's thread changes.
func (s *Session) Watch(ctx context.Context) error {
	body, err := s.client.OpenEvents(ctx)
	if err != nil {
		return err
	}
	defer body.Close()

	err = readEvents(body, func(event Event) {
		s.applyEvent(ctx, event)
	})
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (s *Session) applyEvent(ctx context.Context, event Event) {
	switch event.Type {
	case eventLikeChanged, eventFavoriteChanged:
		if s.userID == 0 || event.UserID != s.userID {
			return
		}
		s.mu.Lock()
		if event.Type == eventLikeChanged {
			setFlag(s.liked, event.VideoID, event.Active)
		} else {
			setFlag(s.favorited, event.VideoID, event.Active)
		}
		s.mu.Unlock()
	case eventCommentChanged:
		videoID, err := s.currentVideoID()
		if err != nil || videoID != event.VideoID {
			return
		}
		if err := s.refreshComments(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("comment refresh after remote change failed", zap.Error(err), zap.Int64("video_id", videoID))
		}
	}
}

// readEvents parses the text/event-stream framing. Events without a JSON object payload,
// such as heartbeats, are still delivered with only Type set.
func readEvents(stream io.Reader, handle func(Event)) error {
	scanner := bufio.NewScanner(stream)
	eventType := ""
	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if eventType != "" || data.Len() > 0 {
				event := Event{}
				if data.Len() > 0 {
					_ = json.Unmarshal([]byte(data.String()), &event)
				}
				event.Type = eventType
				handle(event)
			}
			eventType = ""
			data.Reset()
		case strings.HasPrefix(line, "event:"):
			eventType = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
