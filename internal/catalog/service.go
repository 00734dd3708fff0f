package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/MarcoPoloResearchLab/vidstream/internal/svcerr"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opCreateVideo = "catalog.create_video"
	opListVideos  = "catalog.list_videos"
	opFindVideo   = "catalog.find_video"
	opVideoExists = "catalog.video_exists"
)

var (
	errMissingDatabase = errors.New("catalog: database connection required")
	noOpLogger         = zap.NewNop()
)

// ServiceConfig describes the dependencies of the catalog service.
type ServiceConfig struct {
	Database    *gorm.DB
	Logger      *zap.Logger
	// MaxPageSize caps the limit of ListVideos when positive. Zero leaves limit unbounded.
	MaxPageSize int
}

// Service reads and writes catalog rows.
type Service struct {
	db          *gorm.DB
	logger      *zap.Logger
	validate    *validator.Validate
	maxPageSize int
}

// NewService constructs the catalog service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	maxPageSize := cfg.MaxPageSize
	if maxPageSize < 0 {
		maxPageSize = 0
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		return field.Tag.Get("field")
	})

	return &Service{
		db:          cfg.Database,
		logger:      logger,
		validate:    validate,
		maxPageSize: maxPageSize,
	}, nil
}

// CreateVideo validates every field is non-empty and persists the video.
func (s *Service) CreateVideo(ctx context.Context, input VideoInput) (Video, error) {
	trimmed := VideoInput{
		Title:       strings.TrimSpace(input.Title),
		URL:         strings.TrimSpace(input.URL),
		Thumbnail:   strings.TrimSpace(input.Thumbnail),
		Duration:    strings.TrimSpace(input.Duration),
		Views:       strings.TrimSpace(input.Views),
		Date:        strings.TrimSpace(input.Date),
		Description: strings.TrimSpace(input.Description),
	}
	if err := s.validate.Struct(trimmed); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return Video{}, svcerr.Validation(opCreateVideo, "invalid_input", err.Error())
		}
		problems := make([]string, 0, len(fieldErrors))
		for _, fieldError := range fieldErrors {
			problems = append(problems, fmt.Sprintf("%s is required", fieldError.Field()))
		}
		return Video{}, svcerr.Validation(opCreateVideo, "invalid_input", "", problems...)
	}

	video := Video{
		Title:       trimmed.Title,
		URL:         trimmed.URL,
		Thumbnail:   trimmed.Thumbnail,
		Duration:    trimmed.Duration,
		Views:       trimmed.Views,
		Date:        trimmed.Date,
		Description: trimmed.Description,
	}
	if err := s.db.WithContext(ctx).Create(&video).Error; err != nil {
		s.logError(opCreateVideo, "insert_failed", err, zap.String("title", video.Title))
		return Video{}, svcerr.Store(opCreateVideo, "insert_failed", err)
	}
	return video, nil
}

// ListVideos returns videos [(page-1)*limit, page*limit) in id order and the total count.
func (s *Service) ListVideos(ctx context.Context, page, limit int) (Page, error) {
	if page < 1 || limit < 1 {
		return Page{}, svcerr.Validation(opListVideos, "invalid_pagination",
			`parameters "page" and "limit" must be positive numbers`, "page", "limit")
	}
	if s.maxPageSize > 0 && limit > s.maxPageSize {
		return Page{}, svcerr.Validation(opListVideos, "limit_too_large",
			fmt.Sprintf(`parameter "limit" must not exceed %d`, s.maxPageSize), "limit")
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&Video{}).Count(&total).Error; err != nil {
		s.logError(opListVideos, "count_failed", err)
		return Page{}, svcerr.Store(opListVideos, "count_failed", err)
	}

	offset, inRange := pageOffset(page, limit)
	if !inRange || int64(offset) >= total {
		return Page{Videos: []Video{}, Page: page, Limit: limit, Total: total}, nil
	}

	videos := make([]Video, 0, min(limit, int(total-int64(offset))))
	if err := s.db.WithContext(ctx).
		Order("id ASC").
		Offset(offset).
		Limit(limit).
		Find(&videos).Error; err != nil {
		s.logError(opListVideos, "query_failed", err, zap.Int("page", page), zap.Int("limit", limit))
		return Page{}, svcerr.Store(opListVideos, "query_failed", err)
	}

	return Page{Videos: videos, Page: page, Limit: limit, Total: total}, nil
}

// pageOffset returns (page-1)*limit, reporting false when the product overflows int.
func pageOffset(page, limit int) (int, bool) {
	if page-1 > math.MaxInt/limit {
		return 0, false
	}
	return (page - 1) * limit, true
}

// FindVideo loads one video or reports NotFound.
func (s *Service) FindVideo(ctx context.Context, videoID int64) (Video, error) {
	if videoID <= 0 {
		return Video{}, svcerr.NotFound(opFindVideo, "video_not_found", "video not found")
	}
	var video Video
	err := s.db.WithContext(ctx).Where("id = ?", videoID).Take(&video).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Video{}, svcerr.NotFound(opFindVideo, "video_not_found", "video not found")
	}
	if err != nil {
		s.logError(opFindVideo, "query_failed", err, zap.Int64("video_id", videoID))
		return Video{}, svcerr.Store(opFindVideo, "query_failed", err)
	}
	return video, nil
}

// VideoExists reports whether a video row with the id is present.
func (s *Service) VideoExists(ctx context.Context, videoID int64) (bool, error) {
	if videoID <= 0 {
		return false, nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&Video{}).Where("id = ?", videoID).Count(&count).Error; err != nil {
		s.logError(opVideoExists, "query_failed", err, zap.Int64("video_id", videoID))
		return false, svcerr.Store(opVideoExists, "query_failed", err)
	}
	return count > 0, nil
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err),
	}
	attrs = append(attrs, fields...)
	s.logger.Error("catalog service error", attrs...)
}
