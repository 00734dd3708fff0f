package interactions

import (
	"time"

	"github.com/MarcoPoloResearchLab/vidstream/internal/catalog"
	"github.com/MarcoPoloResearchLab/vidstream/internal/users"
)

// Like records that a user liked a video. At most one row exists per (user, video).
type Like struct {
	ID        int64          `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    int64          `gorm:"column:user_id;not null;uniqueIndex:idx_likes_user_video,priority:1"`
	VideoID   int64          `gorm:"column:video_id;not null;uniqueIndex:idx_likes_user_video,priority:2;index:idx_likes_video"`
	CreatedAt time.Time      `gorm:"column:created_at;not null"`
	User      *users.User    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Video     *catalog.Video `gorm:"foreignKey:VideoID;constraint:OnDelete:CASCADE"`
}

// TableName provides the explicit table binding for GORM.
func (Like) TableName() string {
	return "likes"
}

// Favorite records that a user bookmarked a video. At most one row exists per (user, video).
type Favorite struct {
	ID        int64          `gorm:"column:id;primaryKey;autoIncrement"`
	UserID    int64          `gorm:"column:user_id;not null;uniqueIndex:idx_favorites_user_video,priority:1"`
	VideoID   int64          `gorm:"column:video_id;not null;uniqueIndex:idx_favorites_user_video,priority:2;index:idx_favorites_video"`
	CreatedAt time.Time      `gorm:"column:created_at;not null"`
	User      *users.User    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Video     *catalog.Video `gorm:"foreignKey:VideoID;constraint:OnDelete:CASCADE"`
}

// TableName provides the explicit table binding for GORM.
func (Favorite) TableName() string {
	return "favorites"
}

// Comment is a user's remark on a video.
type Comment struct {
	ID        int64          `gorm:"column:id;primaryKey;autoIncrement"`
	Content   string         `gorm:"column:content;type:text;not null"`
	UserID    int64          `gorm:"column:user_id;not null;index:idx_comments_user"`
	VideoID   int64          `gorm:"column:video_id;not null;index:idx_comments_video_created,priority:1"`
	CreatedAt time.Time      `gorm:"column:created_at;not null;index:idx_comments_video_created,priority:2"`
	User      *users.User    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Video     *catalog.Video `gorm:"foreignKey:VideoID;constraint:OnDelete:CASCADE"`
}

// TableName provides the explicit table binding for GORM.
func (Comment) TableName() string {
	return "comments"
}

// LikeOutcome reports the result of a like toggle. Like is populated only when Active.
type LikeOutcome struct {
	Active bool
	Like   Like
}

// FavoriteOutcome reports the result of a favorite toggle. Favorite is populated only when Active.
type FavoriteOutcome struct {
	Active   bool
	Favorite Favorite
}

// CommentInput is the create payload for a comment.
type CommentInput struct {
	Content string
	UserID  int64
	VideoID int64
}
