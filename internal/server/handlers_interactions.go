package server

import (
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/vidstream/internal/interactions"
	"github.com/gin-gonic/gin"
)

type pairRequestPayload struct {
	UserID  *int64 `json:"userId"`
	VideoID int64  `json:"videoId"`
}

type commentRequestPayload struct {
	Content string `json:"content"`
	UserID  *int64 `json:"userId"`
	VideoID int64  `json:"videoId"`
}

func (h *httpHandler) bindPair(c *gin.Context) (int64, int64, bool) {
	var request pairRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidBody(c)
		return 0, 0, false
	}
	userID, ok := actingUserID(c, request.UserID)
	if !ok {
		return 0, 0, false
	}
	return userID, request.VideoID, true
}

// listOwner resolves the ?userId= filter, defaulting to the caller.
func listOwner(c *gin.Context) int64 {
	if raw, present := c.GetQuery("userId"); present {
		return parseID(raw)
	}
	userID, _ := authenticatedUserID(c)
	return userID
}

func (h *httpHandler) handleToggleLike(c *gin.Context) {
	userID, videoID, ok := h.bindPair(c)
	if !ok {
		return
	}
	outcome, err := h.interactions.ToggleLike(c.Request.Context(), userID, videoID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.publishPairChange(RealtimeEventLikeChanged, userID, videoID, outcome.Active)
	if !outcome.Active {
		c.JSON(http.StatusOK, gin.H{"liked": false, "message": "like removed"})
		return
	}
	payload, err := newLikePayload(outcome.Like)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"liked": true, "like": payload})
}

func (h *httpHandler) handleRemoveLike(c *gin.Context) {
	userID, videoID, ok := h.bindPair(c)
	if !ok {
		return
	}
	if err := h.interactions.RemoveLike(c.Request.Context(), userID, videoID); err != nil {
		h.respondError(c, err)
		return
	}
	h.publishPairChange(RealtimeEventLikeChanged, userID, videoID, false)
	c.JSON(http.StatusOK, gin.H{"message": "like removed"})
}

func (h *httpHandler) handleListLikes(c *gin.Context) {
	likes, err := h.interactions.ListLikes(c.Request.Context(), listOwner(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	payload, err := mapEach(likes, newLikePayload)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) handleToggleFavorite(c *gin.Context) {
	userID, videoID, ok := h.bindPair(c)
	if !ok {
		return
	}
	outcome, err := h.interactions.ToggleFavorite(c.Request.Context(), userID, videoID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.publishPairChange(RealtimeEventFavoriteChanged, userID, videoID, outcome.Active)
	if !outcome.Active {
		c.JSON(http.StatusOK, gin.H{"favorited": false, "message": "favorite removed"})
		return
	}
	payload, err := newFavoritePayload(outcome.Favorite)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"favorited": true, "favorite": payload})
}

func (h *httpHandler) handleRemoveFavorite(c *gin.Context) {
	userID, videoID, ok := h.bindPair(c)
	if !ok {
		return
	}
	if err := h.interactions.RemoveFavorite(c.Request.Context(), userID, videoID); err != nil {
		h.respondError(c, err)
		return
	}
	h.publishPairChange(RealtimeEventFavoriteChanged, userID, videoID, false)
	c.JSON(http.StatusOK, gin.H{"message": "favorite removed"})
}

func (h *httpHandler) handleListFavorites(c *gin.Context) {
	favorites, err := h.interactions.ListFavorites(c.Request.Context(), listOwner(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	payload, err := mapEach(favorites, newFavoritePayload)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) handleAddComment(c *gin.Context) {
	var request commentRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidBody(c)
		return
	}
	userID, ok := actingUserID(c, request.UserID)
	if !ok {
		return
	}
	comment, err := h.interactions.AddComment(c.Request.Context(), interactions.CommentInput{
		Content: request.Content,
		UserID:  userID,
		VideoID: request.VideoID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.realtime.Broadcast(RealtimeMessage{
		UserID:    userID,
		EventType: RealtimeEventCommentChanged,
		VideoID:   comment.VideoID,
		CommentID: comment.ID,
		Active:    true,
		Timestamp: time.Now().UTC(),
	})
	payload, err := newCommentPayload(comment)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payload)
}

func (h *httpHandler) handleListComments(c *gin.Context) {
	comments, err := h.interactions.ListComments(c.Request.Context(), parseID(c.Query("videoId")))
	if err != nil {
		h.respondError(c, err)
		return
	}
	payload, err := mapEach(comments, newCommentPayload)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) handleDeleteComment(c *gin.Context) {
	userID, ok := actingUserID(c, nil)
	if !ok {
		return
	}
	commentID := parseID(c.Param("id"))
	if commentID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "comment id must be a positive number", "code": "comments.invalid_id"})
		return
	}
	comment, err := h.interactions.DeleteComment(c.Request.Context(), userID, commentID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.realtime.Broadcast(RealtimeMessage{
		UserID:    userID,
		EventType: RealtimeEventCommentChanged,
		VideoID:   comment.VideoID,
		CommentID: comment.ID,
		Active:    false,
		Timestamp: time.Now().UTC(),
	})
	c.JSON(http.StatusOK, gin.H{"message": "comment deleted"})
}

func (h *httpHandler) publishPairChange(eventType string, userID, videoID int64, active bool) {
	h.realtime.Publish(RealtimeMessage{
		UserID:    userID,
		EventType: eventType,
		VideoID:   videoID,
		Active:    active,
		Timestamp: time.Now().UTC(),
	})
}
