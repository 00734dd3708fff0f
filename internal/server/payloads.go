package server

import (
	"fmt"
	"time"

	"github.com/MarcoPoloResearchLab/vidstream/internal/catalog"
	"github.com/MarcoPoloResearchLab/vidstream/internal/interactions"
	"github.com/MarcoPoloResearchLab/vidstream/internal/users"
	"github.com/jinzhu/copier"
)

type userPayload struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

type videoPayload struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Thumbnail   string    `json:"thumbnail"`
	Duration    string    `json:"duration"`
	Views       string    `json:"views"`
	Date        string    `json:"date"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type videoSummaryPayload struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
}

type pairPayload struct {
	ID        int64                `json:"id"`
	UserID    int64                `json:"userId"`
	VideoID   int64                `json:"videoId"`
	CreatedAt time.Time            `json:"createdAt"`
	Video     *videoSummaryPayload `json:"video,omitempty" copier:"-"`
}

type commentAuthorPayload struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type commentPayload struct {
	ID        int64                 `json:"id"`
	Content   string                `json:"content"`
	UserID    int64                 `json:"userId"`
	VideoID   int64                 `json:"videoId"`
	CreatedAt time.Time             `json:"createdAt"`
	User      *commentAuthorPayload `json:"user,omitempty" copier:"-"`
}

type paginationPayload struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

type videoListPayload struct {
	Data       []videoPayload    `json:"data"`
	Pagination paginationPayload `json:"pagination"`
}

func newUserPayload(user users.User) (userPayload, error) {
	var payload userPayload
	if err := copier.Copy(&payload, &user); err != nil {
		return userPayload{}, fmt.Errorf("map user %d: %w", user.ID, err)
	}
	return payload, nil
}

func newVideoPayload(video catalog.Video) (videoPayload, error) {
	var payload videoPayload
	if err := copier.Copy(&payload, &video); err != nil {
		return videoPayload{}, fmt.Errorf("map video %d: %w", video.ID, err)
	}
	return payload, nil
}

func newVideoSummaryPayload(video *catalog.Video) (*videoSummaryPayload, error) {
	if video == nil {
		return nil, nil
	}
	var payload videoSummaryPayload
	if err := copier.Copy(&payload, video); err != nil {
		return nil, fmt.Errorf("map video summary %d: %w", video.ID, err)
	}
	return &payload, nil
}

func newLikePayload(like interactions.Like) (pairPayload, error) {
	var payload pairPayload
	if err := copier.Copy(&payload, &like); err != nil {
		return pairPayload{}, fmt.Errorf("map like %d: %w", like.ID, err)
	}
	video, err := newVideoSummaryPayload(like.Video)
	if err != nil {
		return pairPayload{}, err
	}
	payload.Video = video
	return payload, nil
}

func newFavoritePayload(favorite interactions.Favorite) (pairPayload, error) {
	var payload pairPayload
	if err := copier.Copy(&payload, &favorite); err != nil {
		return pairPayload{}, fmt.Errorf("map favorite %d: %w", favorite.ID, err)
	}
	video, err := newVideoSummaryPayload(favorite.Video)
	if err != nil {
		return pairPayload{}, err
	}
	payload.Video = video
	return payload, nil
}

func newCommentPayload(comment interactions.Comment) (commentPayload, error) {
	var payload commentPayload
	if err := copier.Copy(&payload, &comment); err != nil {
		return commentPayload{}, fmt.Errorf("map comment %d: %w", comment.ID, err)
	}
	if comment.User != nil {
		payload.User = &commentAuthorPayload{ID: comment.User.ID, Username: comment.User.Username}
	}
	return payload, nil
}

func newVideoListPayload(page catalog.Page) (videoListPayload, error) {
	videos := make([]videoPayload, 0, len(page.Videos))
	for _, video := range page.Videos {
		payload, err := newVideoPayload(video)
		if err != nil {
			return videoListPayload{}, err
		}
		videos = append(videos, payload)
	}
	return videoListPayload{
		Data:       videos,
		Pagination: paginationPayload{Page: page.Page, Limit: page.Limit, Total: page.Total},
	}, nil
}

// mapEach applies build to every item, stopping at the first failure.
func mapEach[T, P any](items []T, build func(T) (P, error)) ([]P, error) {
	payload := make([]P, 0, len(items))
	for _, item := range items {
		mapped, err := build(item)
		if err != nil {
			return nil, err
		}
		payload = append(payload, mapped)
	}
	return payload, nil
}
