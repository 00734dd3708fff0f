package interactions

import (
	"context"
	"errors"
	"strings"

	"github.com/MarcoPoloResearchLab/vidstream/internal/svcerr"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	opAddComment    = "interactions.add_comment"
	opListComments  = "interactions.list_comments"
	opDeleteComment = "interactions.delete_comment"

	preloadUserColumn = "User"
)

// AddComment persists a comment after checking that the author and video exist.
// The returned comment carries its author.
func (s *Service) AddComment(ctx context.Context, input CommentInput) (Comment, error) {
	content := strings.TrimSpace(input.Content)
	missing := make([]string, 0, 3)
	if content == "" {
		missing = append(missing, fieldContent)
	}
	if input.UserID <= 0 {
		missing = append(missing, fieldUserID)
	}
	if input.VideoID <= 0 {
		missing = append(missing, fieldVideoID)
	}
	if err := missingFields(opAddComment, missing); err != nil {
		return Comment{}, err
	}

	if err := s.ensureReferences(ctx, opAddComment, input.UserID, input.VideoID); err != nil {
		return Comment{}, err
	}

	comment := Comment{
		Content:   content,
		UserID:    input.UserID,
		VideoID:   input.VideoID,
		CreatedAt: s.clock().UTC(),
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&comment).Error; err != nil {
		s.logError(opAddComment, "insert_failed", err,
			zap.Int64("user_id", input.UserID), zap.Int64("video_id", input.VideoID))
		return Comment{}, svcerr.Store(opAddComment, "insert_failed", err)
	}

	var stored Comment
	if err := s.db.WithContext(ctx).Preload(preloadUserColumn).Where("id = ?", comment.ID).Take(&stored).Error; err != nil {
		s.logError(opAddComment, "reload_failed", err, zap.Int64("comment_id", comment.ID))
		return Comment{}, svcerr.Store(opAddComment, "reload_failed", err)
	}
	return stored, nil
}

// ListComments returns a video's comments with their authors in creation order.
func (s *Service) ListComments(ctx context.Context, videoID int64) ([]Comment, error) {
	if videoID <= 0 {
		return nil, missingFields(opListComments, []string{fieldVideoID})
	}
	comments := make([]Comment, 0)
	if err := s.db.WithContext(ctx).
		Preload(preloadUserColumn).
		Where("video_id = ?", videoID).
		Order(orderCreated).
		Find(&comments).Error; err != nil {
		s.logError(opListComments, "query_failed", err, zap.Int64("video_id", videoID))
		return nil, svcerr.Store(opListComments, "query_failed", err)
	}
	return comments, nil
}

// DeleteComment removes one comment. Only its author may delete it.
func (s *Service) DeleteComment(ctx context.Context, requesterID, commentID int64) (Comment, error) {
	missing := make([]string, 0, 2)
	if requesterID <= 0 {
		missing = append(missing, fieldUserID)
	}
	if commentID <= 0 {
		missing = append(missing, fieldCommentID)
	}
	if err := missingFields(opDeleteComment, missing); err != nil {
		return Comment{}, err
	}

	var comment Comment
	err := s.db.WithContext(ctx).Where("id = ?", commentID).Take(&comment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Comment{}, svcerr.NotFound(opDeleteComment, "comment_not_found", "comment not found")
	}
	if err != nil {
		s.logError(opDeleteComment, "query_failed", err, zap.Int64("comment_id", commentID))
		return Comment{}, svcerr.Store(opDeleteComment, "query_failed", err)
	}
	if comment.UserID != requesterID {
		return Comment{}, svcerr.Forbidden(opDeleteComment, "not_owner", "only the author can delete this comment")
	}

	// deletes only the requester's row
	deleted := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", commentID, requesterID).Delete(&Comment{})
	if deleted.Error != nil {
		s.logError(opDeleteComment, "delete_failed", deleted.Error, zap.Int64("comment_id", commentID))
		return Comment{}, svcerr.Store(opDeleteComment, "delete_failed", deleted.Error)
	}
	if deleted.RowsAffected == 0 {
		return Comment{}, svcerr.NotFound(opDeleteComment, "comment_not_found", "comment not found")
	}
	return comment, nil
}
