package server

import (
	"fmt"
	"net/http"

	"github.com/MarcoPoloResearchLab/vidstream/internal/catalog"
	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
)

type videoRequestPayload struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Thumbnail   string `json:"thumbnail"`
	Duration    string `json:"duration"`
	Views       string `json:"views"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

func (h *httpHandler) handleCreateVideo(c *gin.Context) {
	var request videoRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidBody(c)
		return
	}
	var input catalog.VideoInput
	if err := copier.Copy(&input, &request); err != nil {
		h.respondError(c, fmt.Errorf("map video request: %w", err))
		return
	}

	video, err := h.catalog.CreateVideo(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}
	payload, err := newVideoPayload(video)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payload)
}

func (h *httpHandler) handleListVideos(c *gin.Context) {
	page := parseQueryInt(c, "page", 1)
	limit := parseQueryInt(c, "limit", h.pageSize)

	result, err := h.catalog.ListVideos(c.Request.Context(), page, limit)
	if err != nil {
		h.respondError(c, err)
		return
	}
	payload, err := newVideoListPayload(result)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) handleGetVideo(c *gin.Context) {
	videoID := parseID(c.Param("id"))
	if videoID == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "video id must be a positive number", "code": "videos.invalid_id"})
		return
	}
	video, err := h.catalog.FindVideo(c.Request.Context(), videoID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	payload, err := newVideoPayload(video)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, payload)
}
