package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/MarcoPoloResearchLab/vidstream/internal/auth"
	"github.com/MarcoPoloResearchLab/vidstream/internal/catalog"
	"github.com/MarcoPoloResearchLab/vidstream/internal/database"
	"github.com/MarcoPoloResearchLab/vidstream/internal/interactions"
	"github.com/MarcoPoloResearchLab/vidstream/internal/users"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type testAPI struct {
	handler      http.Handler
	db           *gorm.DB
	tokens       *auth.TokenIssuer
	users        *users.Service
	catalog      *catalog.Service
	interactions *interactions.Service
	realtime     *RealtimeDispatcher
}

func newTestAPI(t *testing.T) testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.Open(database.Config{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "api.db"),
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	tokenIssuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte("test-signing-secret"),
		Issuer:        "vidstream-auth",
		Audience:      "vidstream-api",
		TokenTTL:      time.Minute,
	})
	if err != nil {
		t.Fatalf("failed to create token issuer: %v", err)
	}
	userService, err := users.NewService(users.ServiceConfig{Database: db, HashCost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("failed to create user service: %v", err)
	}
	catalogService, err := catalog.NewService(catalog.ServiceConfig{Database: db})
	if err != nil {
		t.Fatalf("failed to create catalog service: %v", err)
	}
	interactionService, err := interactions.NewService(interactions.ServiceConfig{
		Database: db,
		Users:    userService,
		Videos:   catalogService,
	})
	if err != nil {
		t.Fatalf("failed to create interaction service: %v", err)
	}

	dispatcher := NewRealtimeDispatcher()
	handler, err := NewHTTPHandler(Dependencies{
		TokenManager:       tokenIssuer,
		UserService:        userService,
		CatalogService:     catalogService,
		InteractionService: interactionService,
		Realtime:           dispatcher,
		Database:           db,
		HeartbeatInterval:  time.Second,
	})
	if err != nil {
		t.Fatalf("failed to construct http handler: %v", err)
	}

	return testAPI{
		handler:      handler,
		db:           db,
		tokens:       tokenIssuer,
		users:        userService,
		catalog:      catalogService,
		interactions: interactionService,
		realtime:     dispatcher,
	}
}

func (api testAPI) registerUser(t *testing.T, username string) (int64, string) {
	t.Helper()
	user, err := api.users.Register(context.Background(), users.Registration{
		Username: username,
		Email:    username + "@example.com",
		Password: "pw",
	})
	if err != nil {
		t.Fatalf("failed to register %s: %v", username, err)
	}
	token, _, err := api.tokens.IssueToken(context.Background(), user.ID)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	return user.ID, token
}

func (api testAPI) seedVideo(t *testing.T, title string) int64 {
	t.Helper()
	video, err := api.catalog.CreateVideo(context.Background(), catalog.VideoInput{
		Title:       title,
		URL:         "https://cdn.example.com/" + title + ".mp4",
		Thumbnail:   "https://cdn.example.com/" + title + ".jpg",
		Duration:    "2:00",
		Views:       "42",
		Date:        "2024-02-02",
		Description: title + " description",
	})
	if err != nil {
		t.Fatalf("failed to seed video %s: %v", title, err)
	}
	return video.ID
}

func (api testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request := httptest.NewRequest(method, path, reader)
	request.Header.Set("Content-Type", "application/json")
	if token != "" {
		request.Header.Set("Authorization", "Bearer "+token)
	}
	recorder := httptest.NewRecorder()
	api.handler.ServeHTTP(recorder, request)
	return recorder
}

func decodeBody(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", recorder.Body.String(), err)
	}
}
