package server

import (
	"net/http"

	"github.com/MarcoPoloResearchLab/vidstream/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type signupRequestPayload struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequestPayload struct {
	EmailOrUsername string `json:"emailOrUsername"`
	Password        string `json:"password"`
}

type loginResponsePayload struct {
	User        userPayload `json:"user"`
	AccessToken string      `json:"accessToken"`
	ExpiresIn   int64       `json:"expiresIn"`
	TokenType   string      `json:"tokenType"`
}

func (h *httpHandler) handleSignup(c *gin.Context) {
	var request signupRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidBody(c)
		return
	}
	user, err := h.users.Register(c.Request.Context(), users.Registration{
		Username: request.Username,
		Email:    request.Email,
		Password: request.Password,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	payload, err := newUserPayload(user)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, payload)
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	var request loginRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		respondInvalidBody(c)
		return
	}
	user, err := h.users.Authenticate(c.Request.Context(), request.EmailOrUsername, request.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	payload, err := newUserPayload(user)
	if err != nil {
		h.respondError(c, err)
		return
	}
	token, expiresIn, err := h.tokens.IssueToken(c.Request.Context(), user.ID)
	if err != nil {
		h.logger.Error("failed to issue access token", zap.Error(err), zap.Int64("user_id", user.ID))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue access token", "code": "auth.token_issue_failed"})
		return
	}
	c.JSON(http.StatusOK, loginResponsePayload{
		User:        payload,
		AccessToken: token,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
	})
}
