package server

import (
	contextpkg "context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestAuthorizeRequestLogsExpiredTokenAtInfoLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodGet, "/likes", http.NoBody)
	request.Header.Set("Authorization", "Bearer expired-token")
	ctx.Request = request

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{
		tokens: stubTokenManager{validateErr: jwt.ErrTokenExpired},
		logger: zap.New(core),
	}

	handler.authorizeRequest(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.InfoLevel {
		t.Fatalf("expected info level for expired token, got %s", entry.Level)
	}
	if entry.Message != "token validation failed" {
		t.Fatalf("unexpected log message: %q", entry.Message)
	}
	hasExpired := false
	for _, field := range entry.Context {
		if field.Type == zapcore.ErrorType && errors.Is(field.Interface.(error), jwt.ErrTokenExpired) {
			hasExpired = true
			break
		}
	}
	if !hasExpired {
		t.Fatalf("expected expired token error context, got %v", entry.Context)
	}
}

func TestAuthorizeRequestLogsUnexpectedTokenErrorAtWarnLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodGet, "/likes", http.NoBody)
	request.Header.Set("Authorization", "Bearer invalid-token")
	ctx.Request = request

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{
		tokens: stubTokenManager{validateErr: errors.New("signature mismatch")},
		logger: zap.New(core),
	}

	handler.authorizeRequest(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level for unexpected error, got %s", entries[0].Level)
	}
}

func TestAuthorizeRequestAcceptsQueryToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	ctx.Request = httptest.NewRequest(http.MethodGet, "/events?access_token=good", http.NoBody)

	handler := &httpHandler{
		tokens: stubTokenManager{userID: 42},
		logger: zap.NewNop(),
	}

	handler.authorizeRequest(ctx)

	if ctx.IsAborted() {
		t.Fatalf("expected request to pass, got status %d", recorder.Code)
	}
	if userID, ok := authenticatedUserID(ctx); !ok || userID != 42 {
		t.Fatalf("expected user 42 in context, got %d", userID)
	}
}

func TestSignupAndLoginIssueToken(t *testing.T) {
	api := newTestAPI(t)

	signup := api.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"username": "frank",
		"email":    "frank@example.com",
		"password": "pw",
	})
	if signup.Code != http.StatusCreated {
		t.Fatalf("expected 201 from signup, got %d: %s", signup.Code, signup.Body.String())
	}

	duplicate := api.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"username": "frank",
		"email":    "frank@example.com",
		"password": "pw",
	})
	if duplicate.Code != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate signup, got %d", duplicate.Code)
	}

	login := api.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"emailOrUsername": "frank",
		"password":        "pw",
	})
	if login.Code != http.StatusOK {
		t.Fatalf("expected 200 from login, got %d: %s", login.Code, login.Body.String())
	}
	var response loginResponsePayload
	decodeBody(t, login, &response)
	if response.AccessToken == "" || response.TokenType != "Bearer" || response.User.Username != "frank" {
		t.Fatalf("unexpected login response %+v", response)
	}
	userID, err := api.tokens.ValidateToken(response.AccessToken)
	if err != nil || userID != response.User.ID {
		t.Fatalf("issued token does not resolve to user: %d (err %v)", userID, err)
	}

	badLogin := api.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"emailOrUsername": "frank",
		"password":        "wrong",
	})
	if badLogin.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", badLogin.Code)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/likes"},
		{http.MethodGet, "/favorites"},
		{http.MethodPost, "/comments"},
		{http.MethodDelete, "/comments/1"},
		{http.MethodPost, "/videos"},
	} {
		recorder := api.do(t, route.method, route.path, "", nil)
		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s: expected 401, got %d", route.method, route.path, recorder.Code)
		}
	}
}

type stubTokenManager struct {
	userID      int64
	validateErr error
}

func (s stubTokenManager) IssueToken(contextpkg.Context, int64) (string, int64, error) {
	return "", 0, errors.New("not implemented")
}

func (s stubTokenManager) ValidateToken(string) (int64, error) {
	if s.validateErr != nil {
		return 0, s.validateErr
	}
	return s.userID, nil
}
