package catalog

import "time"

// Video is a catalog entry. All descriptive fields are free-form strings.
type Video struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Title       string    `gorm:"column:title;size:255;not null"`
	URL         string    `gorm:"column:url;size:1024;not null"`
	Thumbnail   string    `gorm:"column:thumbnail;size:1024;not null"`
	Duration    string    `gorm:"column:duration;size:32;not null"`
	Views       string    `gorm:"column:views;size:32;not null"`
	Date        string    `gorm:"column:date;size:64;not null"`
	Description string    `gorm:"column:description;type:text;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName provides the explicit table binding for GORM.
func (Video) TableName() string {
	return "videos"
}

// VideoInput is the administrative create payload.
type VideoInput struct {
	Title       string `field:"title" validate:"required"`
	URL         string `field:"url" validate:"required"`
	Thumbnail   string `field:"thumbnail" validate:"required"`
	Duration    string `field:"duration" validate:"required"`
	Views       string `field:"views" validate:"required"`
	Date        string `field:"date" validate:"required"`
	Description string `field:"description" validate:"required"`
}

// Page is one slice of the catalog plus the total row count.
type Page struct {
	Videos []Video
	Page   int
	Limit  int
	Total  int64
}
