package interactions

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/vidstream/internal/svcerr"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	fieldUserID    = "userId"
	fieldVideoID   = "videoId"
	fieldContent   = "content"
	fieldCommentID = "commentId"

	queryUserVideo = "user_id = ? AND video_id = ?"
	orderCreated   = "created_at ASC, id ASC"

	messageReferenceNotFound = "user or video not found"
)

var (
	errMissingDatabase = errors.New("interactions: database connection required")
	errMissingUsers    = errors.New("interactions: user directory required")
	errMissingVideos   = errors.New("interactions: video catalog required")
	noOpLogger         = zap.NewNop()
)

// UserDirectory answers foreign-key existence checks for users.
type UserDirectory interface {
	UserExists(ctx context.Context, userID int64) (bool, error)
}

// VideoCatalog answers foreign-key existence checks for videos.
type VideoCatalog interface {
	VideoExists(ctx context.Context, videoID int64) (bool, error)
}

// ServiceConfig describes the dependencies of the interaction service.
type ServiceConfig struct {
	Database *gorm.DB
	Users    UserDirectory
	Videos   VideoCatalog
	Clock    func() time.Time
	Logger   *zap.Logger
}

// Service owns the likes, favorites and comments tables.
//
// Existence checks on the referenced user and video are advisory; uniqueness of
// (user, video) pairs is enforced by the store's unique indexes.
type Service struct {
	db     *gorm.DB
	users  UserDirectory
	videos VideoCatalog
	clock  func() time.Time
	logger *zap.Logger
}

// NewService constructs the interaction service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	if cfg.Users == nil {
		return nil, errMissingUsers
	}
	if cfg.Videos == nil {
		return nil, errMissingVideos
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		db:     cfg.Database,
		users:  cfg.Users,
		videos: cfg.Videos,
		clock:  clock,
		logger: logger,
	}, nil
}

func (s *Service) ensureReferences(ctx context.Context, operation string, userID, videoID int64) error {
	userExists, err := s.users.UserExists(ctx, userID)
	if err != nil {
		s.logError(operation, "user_lookup_failed", err, zap.Int64("user_id", userID))
		return svcerr.Store(operation, "user_lookup_failed", err)
	}
	videoExists, err := s.videos.VideoExists(ctx, videoID)
	if err != nil {
		s.logError(operation, "video_lookup_failed", err, zap.Int64("video_id", videoID))
		return svcerr.Store(operation, "video_lookup_failed", err)
	}
	if !userExists || !videoExists {
		return svcerr.NotFound(operation, "reference_not_found", messageReferenceNotFound)
	}
	return nil
}

func requirePair(operation string, userID, videoID int64) error {
	missing := make([]string, 0, 2)
	if userID <= 0 {
		missing = append(missing, fieldUserID)
	}
	if videoID <= 0 {
		missing = append(missing, fieldVideoID)
	}
	return missingFields(operation, missing)
}

func missingFields(operation string, missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	return svcerr.Validation(operation, "missing_fields",
		"missing required fields: "+strings.Join(missing, ", "), missing...)
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}
	attrs = append(attrs, fields...)
	s.logger.Error("interactions service error", attrs...)
}
