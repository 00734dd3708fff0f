// Package session keeps a client's view of the catalog and of its own interaction
// state consistent with the backend.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const defaultPageSize = 10

var (
	ErrMissingClient = errors.New("session: api client required")
	ErrEmptyPlaylist = errors.New("session: playlist is empty")
	ErrEmptyComment  = errors.New("session: comment content is empty")
)

// Config configures a Session.
type Config struct {
	Client *Client
	// UserID identifies the signed-in user; remote like and favorite events for other
	// users are ignored.
	UserID   int64
	PageSize int
	Logger   *zap.Logger
}

// Session holds the playlist, the current position, the per-video like and favorite
// flags and the comments of the current video. Flags are keyed by video id so they
// stay correct when the playlist is refetched in a different order.
type Session struct {
	client   *Client
	userID   int64
	pageSize int
	logger   *zap.Logger

	mu        sync.RWMutex
	playlist  []Video
	index     int
	liked     map[int64]bool
	favorited map[int64]bool
	comments  []Comment
}

// New constructs an empty Session. Call Load to populate it.
func New(cfg Config) (*Session, error) {
	if cfg.Client == nil {
		return nil, ErrMissingClient
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		client:    cfg.Client,
		userID:    cfg.UserID,
		pageSize:  pageSize,
		logger:    logger,
		liked:     make(map[int64]bool),
		favorited: make(map[int64]bool),
	}, nil
}

// Load fetches the whole catalog and the user's likes and favorites, rebuilds the
// derived flags and refreshes the comments of the current video.
func (s *Session) Load(ctx context.Context) error {
	videos, err := s.fetchPlaylist(ctx)
	if err != nil {
		return err
	}
	likes, err := s.client.ListLikes(ctx)
	if err != nil {
		return err
	}
	favorites, err := s.client.ListFavorites(ctx)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.applyPlaylist(videos)
	s.liked = flagsFromRecords(likes)
	s.favorited = flagsFromRecords(favorites)
	s.mu.Unlock()

	if len(videos) == 0 {
		return nil
	}
	return s.refreshComments(ctx)
}

func (s *Session) fetchPlaylist(ctx context.Context) ([]Video, error) {
	videos := make([]Video, 0)
	for page := 1; ; page++ {
		result, err := s.client.ListVideos(ctx, page, s.pageSize)
		if err != nil {
			return nil, err
		}
		videos = append(videos, result.Data...)
		if len(result.Data) == 0 || int64(len(videos)) >= result.Pagination.Total {
			return videos, nil
		}
	}
}

// applyPlaylist swaps in a new playlist, keeping the current video selected when it
// is still present. Callers hold s.mu.
func (s *Session) applyPlaylist(videos []Video) {
	currentID := int64(0)
	if s.index < len(s.playlist) {
		currentID = s.playlist[s.index].ID
	}
	s.playlist = videos
	s.index = 0
	for position, video := range videos {
		if video.ID == currentID {
			s.index = position
			break
		}
	}
}

func flagsFromRecords(records []PairRecord) map[int64]bool {
	flags := make(map[int64]bool, len(records))
	for _, record := range records {
		flags[record.VideoID] = true
	}
	return flags
}

// Select makes the video at index current, wrapping around the playlist, and replaces
// the comment list with a fresh fetch.
func (s *Session) Select(ctx context.Context, index int) error {
	s.mu.Lock()
	if len(s.playlist) == 0 {
		s.mu.Unlock()
		return ErrEmptyPlaylist
	}
	index %= len(s.playlist)
	if index < 0 {
		index += len(s.playlist)
	}
	s.index = index
	s.comments = nil
	s.mu.Unlock()

	return s.refreshComments(ctx)
}

// Next advances to the following video.
func (s *Session) Next(ctx context.Context) error {
	s.mu.RLock()
	index := s.index
	s.mu.RUnlock()
	return s.Select(ctx, index+1)
}

func (s *Session) currentVideoID() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.playlist) == 0 {
		return 0, ErrEmptyPlaylist
	}
	return s.playlist[s.index].ID, nil
}

// refreshComments fetches the current video's comments. A response that arrives after
// the user moved to another video is discarded.
func (s *Session) refreshComments(ctx context.Context) error {
	videoID, err := s.currentVideoID()
	if err != nil {
		return err
	}
	comments, err := s.client.ListComments(ctx, videoID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.playlist) > 0 && s.playlist[s.index].ID == videoID {
		s.comments = comments
	}
	return nil
}

// ToggleLike flips the like on the current video. Local state changes only after the
// backend confirms; a conflict triggers a resync of the user's likes.
func (s *Session) ToggleLike(ctx context.Context) (bool, error) {
	return s.togglePair(ctx, s.client.ToggleLike, s.client.ListLikes, func() map[int64]bool { return s.liked }, func(flags map[int64]bool) { s.liked = flags })
}

// ToggleFavorite flips the favorite on the current video with the same rules as ToggleLike.
func (s *Session) ToggleFavorite(ctx context.Context) (bool, error) {
	return s.togglePair(ctx, s.client.ToggleFavorite, s.client.ListFavorites, func() map[int64]bool { return s.favorited }, func(flags map[int64]bool) { s.favorited = flags })
}

func (s *Session) togglePair(
	ctx context.Context,
	toggle func(context.Context, int64) (bool, error),
	list func(context.Context) ([]PairRecord, error),
	flags func() map[int64]bool,
	replace func(map[int64]bool),
) (bool, error) {
	videoID, err := s.currentVideoID()
	if err != nil {
		return false, err
	}
	active, err := toggle(ctx, videoID)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.IsConflict() {
			if records, listErr := list(ctx); listErr == nil {
				s.mu.Lock()
				replace(flagsFromRecords(records))
				s.mu.Unlock()
			} else {
				s.logger.Warn("resync after conflict failed", zap.Error(listErr), zap.Int64("video_id", videoID))
			}
		}
		return false, err
	}

	s.mu.Lock()
	setFlag(flags(), videoID, active)
	s.mu.Unlock()
	return active, nil
}

func setFlag(flags map[int64]bool, videoID int64, active bool) {
	if active {
		flags[videoID] = true
		return
	}
	delete(flags, videoID)
}

// AddComment posts a comment on the current video and prepends it locally on success.
func (s *Session) AddComment(ctx context.Context, content string) (Comment, error) {
	if strings.TrimSpace(content) == "" {
		return Comment{}, ErrEmptyComment
	}
	videoID, err := s.currentVideoID()
	if err != nil {
		return Comment{}, err
	}
	comment, err := s.client.AddComment(ctx, videoID, content)
	if err != nil {
		return Comment{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.playlist) > 0 && s.playlist[s.index].ID == comment.VideoID {
		s.comments = append([]Comment{comment}, s.comments...)
	}
	return comment, nil
}

// DeleteComment removes one of the user's comments and drops only that entry locally.
func (s *Session) DeleteComment(ctx context.Context, commentID int64) error {
	if err := s.client.DeleteComment(ctx, commentID); err != nil {
		return err
	}
	s.mu.Lock()
	s.removeComment(commentID)
	s.mu.Unlock()
	return nil
}

func (s *Session) removeComment(commentID int64) {
	kept := s.comments[:0:0]
	for _, comment := range s.comments {
		if comment.ID != commentID {
			kept = append(kept, comment)
		}
	}
	s.comments = kept
}

// Current returns the selected video.
func (s *Session) Current() (Video, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.playlist) == 0 {
		return Video{}, false
	}
	return s.playlist[s.index], true
}

// CurrentIndex returns the playlist position of the selected video.
func (s *Session) CurrentIndex() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index
}

// Playlist returns a copy of the loaded catalog.
func (s *Session) Playlist() []Video {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Video(nil), s.playlist...)
}

// Liked reports the like flag for a video.
func (s *Session) Liked(videoID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.liked[videoID]
}

// Favorited reports the favorite flag for a video.
func (s *Session) Favorited(videoID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.favorited[videoID]
}

// Comments returns a copy of the current video's comments.
func (s *Session) Comments() []Comment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Comment(nil), s.comments...)
}
