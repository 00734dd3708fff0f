package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MarcoPoloResearchLab/vidstream/internal/auth"
	"github.com/MarcoPoloResearchLab/vidstream/internal/catalog"
	"github.com/MarcoPoloResearchLab/vidstream/internal/interactions"
	"github.com/MarcoPoloResearchLab/vidstream/internal/users"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	userIDContextKey    = "vidstream_user_id"
	requestIDContextKey = "vidstream_request_id"
	requestIDHeader     = "X-Request-ID"

	defaultHeartbeatInterval = 25 * time.Second
	defaultPageSize          = 10
)

var (
	errMissingTokenManager       = errors.New("token manager dependency required")
	errMissingUserService        = errors.New("user service dependency required")
	errMissingCatalogService     = errors.New("catalog service dependency required")
	errMissingInteractionService = errors.New("interaction service dependency required")
	errInvalidAuthorization      = errors.New("authorization header missing or invalid")
)

// TokenManager issues and validates bearer tokens.
type TokenManager interface {
	IssueToken(ctx context.Context, userID int64) (string, int64, error)
	ValidateToken(token string) (int64, error)
}

// Dependencies wires the services behind the HTTP surface.
type Dependencies struct {
	TokenManager        TokenManager
	UserService         *users.Service
	CatalogService      *catalog.Service
	InteractionService  *interactions.Service
	Realtime            *RealtimeDispatcher
	Database            *gorm.DB
	Logger              *zap.Logger
	AllowedOrigins      []string
	HeartbeatInterval   time.Duration
	DefaultCatalogLimit int
}

// NewHTTPHandler builds the gin engine serving the catalog, identity and interaction endpoints.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.TokenManager == nil {
		return nil, errMissingTokenManager
	}
	if deps.UserService == nil {
		return nil, errMissingUserService
	}
	if deps.CatalogService == nil {
		return nil, errMissingCatalogService
	}
	if deps.InteractionService == nil {
		return nil, errMissingInteractionService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}
	pageSize := deps.DefaultCatalogLimit
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(corsMiddleware(deps.AllowedOrigins...))

	handler := &httpHandler{
		tokens:       deps.TokenManager,
		users:        deps.UserService,
		catalog:      deps.CatalogService,
		interactions: deps.InteractionService,
		realtime:     realtime,
		database:     deps.Database,
		logger:       logger,
		heartbeat:    heartbeat,
		pageSize:     pageSize,
	}

	router.GET("/healthz", handler.handleHealth)
	router.POST("/auth/signup", handler.handleSignup)
	router.POST("/auth/login", handler.handleLogin)
	router.GET("/videos", handler.handleListVideos)
	router.GET("/videos/:id", handler.handleGetVideo)
	router.GET("/comments", handler.handleListComments)

	protected := router.Group("/")
	protected.Use(handler.authorizeRequest)
	protected.POST("/videos", handler.handleCreateVideo)
	protected.POST("/likes", handler.handleToggleLike)
	protected.GET("/likes", handler.handleListLikes)
	protected.DELETE("/likes", handler.handleRemoveLike)
	protected.POST("/favorites", handler.handleToggleFavorite)
	protected.GET("/favorites", handler.handleListFavorites)
	protected.DELETE("/favorites", handler.handleRemoveFavorite)
	protected.POST("/comments", handler.handleAddComment)
	protected.DELETE("/comments/:id", handler.handleDeleteComment)
	protected.GET("/events", handler.handleEventStream)

	return router, nil
}

type httpHandler struct {
	tokens       TokenManager
	users        *users.Service
	catalog      *catalog.Service
	interactions *interactions.Service
	realtime     *RealtimeDispatcher
	database     *gorm.DB
	logger       *zap.Logger
	heartbeat    time.Duration
	pageSize     int
}

func corsMiddleware(origins ...string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", requestIDHeader},
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		// credentials cannot be combined with a literal wildcard origin
		config.AllowOriginFunc = func(string) bool { return true }
	} else {
		config.AllowOrigins = origins
	}
	return cors.New(config)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" {
			if generated, err := uuid.NewV7(); err == nil {
				requestID = generated.String()
			} else {
				requestID = uuid.NewString()
			}
		}
		c.Set(requestIDContextKey, requestID)
		c.Header(requestIDHeader, requestID)

		c.Next()

		logger.Info("http request",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(started)),
		)
	}
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	token, err := auth.TokenFromRequest(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errInvalidAuthorization.Error(), "code": "auth.missing_token"})
		return
	}
	userID, err := h.tokens.ValidateToken(token)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			h.logger.Info("token validation failed", zap.Error(err))
		} else {
			h.logger.Warn("token validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized", "code": "auth.invalid_token"})
		return
	}
	c.Set(userIDContextKey, userID)
	c.Next()
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	if h.database != nil {
		sqlDB, err := h.database.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			h.logger.Error("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func authenticatedUserID(c *gin.Context) (int64, bool) {
	userID := c.GetInt64(userIDContextKey)
	return userID, userID > 0
}
