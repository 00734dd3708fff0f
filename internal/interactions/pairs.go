package interactions

import (
	"context"
	"time"

	"github.com/MarcoPoloResearchLab/vidstream/internal/svcerr"
	"go.uber.org/zap"
	"gorm.io/gorm/clause"
)

const (
	opToggleLike       = "interactions.toggle_like"
	opRemoveLike       = "interactions.remove_like"
	opListLikes        = "interactions.list_likes"
	opToggleFavorite   = "interactions.toggle_favorite"
	opRemoveFavorite   = "interactions.remove_favorite"
	opListFavorites    = "interactions.list_favorites"
	labelLike          = "like"
	labelFavorite      = "favorite"
	preloadVideoColumn = "Video"
)

type pairRecord interface {
	Like | Favorite
}

// ToggleLike removes the user's like on the video if present, otherwise creates it.
func (s *Service) ToggleLike(ctx context.Context, userID, videoID int64) (LikeOutcome, error) {
	like, active, err := togglePair(ctx, s, opToggleLike, labelLike, userID, videoID, func(createdAt time.Time) Like {
		return Like{UserID: userID, VideoID: videoID, CreatedAt: createdAt}
	})
	if err != nil {
		return LikeOutcome{}, err
	}
	return LikeOutcome{Active: active, Like: like}, nil
}

// RemoveLike deletes the user's like on the video, reporting NotFound when absent.
func (s *Service) RemoveLike(ctx context.Context, userID, videoID int64) error {
	return removePair[Like](ctx, s, opRemoveLike, labelLike, userID, videoID)
}

// ListLikes returns the user's likes with their video metadata.
func (s *Service) ListLikes(ctx context.Context, userID int64) ([]Like, error) {
	return listPairs[Like](ctx, s, opListLikes, userID)
}

// ToggleFavorite removes the user's favorite on the video if present, otherwise creates it.
func (s *Service) ToggleFavorite(ctx context.Context, userID, videoID int64) (FavoriteOutcome, error) {
	favorite, active, err := togglePair(ctx, s, opToggleFavorite, labelFavorite, userID, videoID, func(createdAt time.Time) Favorite {
		return Favorite{UserID: userID, VideoID: videoID, CreatedAt: createdAt}
	})
	if err != nil {
		return FavoriteOutcome{}, err
	}
	return FavoriteOutcome{Active: active, Favorite: favorite}, nil
}

// RemoveFavorite deletes the user's favorite on the video, reporting NotFound when absent.
func (s *Service) RemoveFavorite(ctx context.Context, userID, videoID int64) error {
	return removePair[Favorite](ctx, s, opRemoveFavorite, labelFavorite, userID, videoID)
}

// ListFavorites returns the user's favorites with their video metadata.
func (s *Service) ListFavorites(ctx context.Context, userID int64) ([]Favorite, error) {
	return listPairs[Favorite](ctx, s, opListFavorites, userID)
}

// togglePair deletes the pair in one statement; when nothing was deleted it inserts a
// new row. A concurrent toggle that inserted first surfaces as a Conflict from the
// unique index.
func togglePair[T pairRecord](ctx context.Context, s *Service, operation, label string, userID, videoID int64, build func(time.Time) T) (T, bool, error) {
	var zero T
	if err := requirePair(operation, userID, videoID); err != nil {
		return zero, false, err
	}

	deleted := s.db.WithContext(ctx).Where(queryUserVideo, userID, videoID).Delete(new(T))
	if deleted.Error != nil {
		s.logError(operation, "delete_failed", deleted.Error,
			zap.Int64("user_id", userID), zap.Int64("video_id", videoID))
		return zero, false, svcerr.Store(operation, "delete_failed", deleted.Error)
	}
	if deleted.RowsAffected > 0 {
		return zero, false, nil
	}

	if err := s.ensureReferences(ctx, operation, userID, videoID); err != nil {
		return zero, false, err
	}

	record := build(s.clock().UTC())
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&record).Error; err != nil {
		if svcerr.IsDuplicateKey(err) {
			return zero, false, svcerr.Conflict(operation, "duplicate_pair",
				label+" already exists for this user and video", err)
		}
		s.logError(operation, "insert_failed", err,
			zap.Int64("user_id", userID), zap.Int64("video_id", videoID))
		return zero, false, svcerr.Store(operation, "insert_failed", err)
	}
	return record, true, nil
}

func removePair[T pairRecord](ctx context.Context, s *Service, operation, label string, userID, videoID int64) error {
	if err := requirePair(operation, userID, videoID); err != nil {
		return err
	}
	deleted := s.db.WithContext(ctx).Where(queryUserVideo, userID, videoID).Delete(new(T))
	if deleted.Error != nil {
		s.logError(operation, "delete_failed", deleted.Error,
			zap.Int64("user_id", userID), zap.Int64("video_id", videoID))
		return svcerr.Store(operation, "delete_failed", deleted.Error)
	}
	if deleted.RowsAffected == 0 {
		return svcerr.NotFound(operation, label+"_not_found", label+" not found")
	}
	return nil
}

func listPairs[T pairRecord](ctx context.Context, s *Service, operation string, userID int64) ([]T, error) {
	if userID <= 0 {
		return nil, missingFields(operation, []string{fieldUserID})
	}
	records := make([]T, 0)
	if err := s.db.WithContext(ctx).
		Preload(preloadVideoColumn).
		Where("user_id = ?", userID).
		Order(orderCreated).
		Find(&records).Error; err != nil {
		s.logError(operation, "query_failed", err, zap.Int64("user_id", userID))
		return nil, svcerr.Store(operation, "query_failed", err)
	}
	return records, nil
}
