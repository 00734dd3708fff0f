package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

var errMissingBaseURL = errors.New("session: api base url required")

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api error %d (%s): %s", e.Status, e.Code, e.Message)
}

// IsConflict reports whether the backend rejected the write on a uniqueness constraint.
func (e *APIError) IsConflict() bool { return e.Status == http.StatusConflict }

// IsNotFound reports whether a referenced row was missing.
func (e *APIError) IsNotFound() bool { return e.Status == http.StatusNotFound }

// User is the public account shape.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// Video is one catalog entry.
type Video struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Thumbnail   string `json:"thumbnail"`
	Duration    string `json:"duration"`
	Views       string `json:"views"`
	Date        string `json:"date"`
	Description string `json:"description"`
}

// VideoSummary is the video metadata nested in like and favorite records.
type VideoSummary struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
}

// PairRecord is a like or favorite row.
type PairRecord struct {
	ID        int64         `json:"id"`
	UserID    int64         `json:"userId"`
	VideoID   int64         `json:"videoId"`
	CreatedAt time.Time     `json:"createdAt"`
	Video     *VideoSummary `json:"video,omitempty"`
}

// Author identifies a comment's writer.
type Author struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

// Comment is a remark on a video together with its author.
type Comment struct {
	ID        int64     `json:"id"`
	Content   string    `json:"content"`
	UserID    int64     `json:"userId"`
	VideoID   int64     `json:"videoId"`
	CreatedAt time.Time `json:"createdAt"`
	User      *Author   `json:"user,omitempty"`
}

// Pagination describes a catalog page.
type Pagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
}

// VideoPage is one page of the catalog.
type VideoPage struct {
	Data       []Video    `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	User        User   `json:"user"`
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
	TokenType   string `json:"tokenType"`
}

type pairRequest struct {
	VideoID int64 `json:"videoId"`
}

type commentRequest struct {
	Content string `json:"content"`
	VideoID int64  `json:"videoId"`
}

// ClientConfig configures the API client.
type ClientConfig struct {
	BaseURL string
	Token   string
	// HTTPClient overrides the transport; tests pass httptest clients.
	HTTPClient *http.Client
}

// Client calls the backend REST endpoints.
type Client struct {
	http *resty.Client

	tokenMu sync.RWMutex
	token   string
}

// NewClient constructs a Client for the backend at cfg.BaseURL.
func NewClient(cfg ClientConfig) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errMissingBaseURL
	}
	var restyClient *resty.Client
	if cfg.HTTPClient != nil {
		restyClient = resty.NewWithClient(cfg.HTTPClient)
	} else {
		restyClient = resty.New()
	}
	restyClient.
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")
	return &Client{http: restyClient, token: cfg.Token}, nil
}

// SetToken replaces the bearer token used on authenticated calls.
func (c *Client) SetToken(token string) {
	c.tokenMu.Lock()
	c.token = token
	c.tokenMu.Unlock()
}

func (c *Client) currentToken() string {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	return c.token
}

func (c *Client) request(ctx context.Context) *resty.Request {
	request := c.http.R().SetContext(ctx)
	if token := c.currentToken(); token != "" {
		request.SetAuthToken(token)
	}
	return request
}

func (c *Client) execute(request *resty.Request, method, path string) error {
	apiErr := &APIError{}
	request.SetError(apiErr)
	response, err := request.Execute(method, path)
	if err != nil {
		return err
	}
	if response.IsError() {
		apiErr.Status = response.StatusCode()
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(response.String())
		}
		return apiErr
	}
	return nil
}

// Signup registers a new account.
func (c *Client) Signup(ctx context.Context, username, email, password string) (User, error) {
	var user User
	err := c.execute(c.request(ctx).
		SetBody(map[string]string{"username": username, "email": email, "password": password}).
		SetResult(&user), http.MethodPost, "/auth/signup")
	return user, err
}

// Login authenticates and stores the returned access token on the client.
func (c *Client) Login(ctx context.Context, emailOrUsername, password string) (LoginResult, error) {
	var result LoginResult
	err := c.execute(c.request(ctx).
		SetBody(map[string]string{"emailOrUsername": emailOrUsername, "password": password}).
		SetResult(&result), http.MethodPost, "/auth/login")
	if err != nil {
		return LoginResult{}, err
	}
	c.SetToken(result.AccessToken)
	return result, nil
}

// ListVideos fetches one catalog page.
func (c *Client) ListVideos(ctx context.Context, page, limit int) (VideoPage, error) {
	var result VideoPage
	err := c.execute(c.request(ctx).
		SetQueryParam("page", strconv.Itoa(page)).
		SetQueryParam("limit", strconv.Itoa(limit)).
		SetResult(&result), http.MethodGet, "/videos")
	return result, err
}

// ListLikes fetches the caller's likes.
func (c *Client) ListLikes(ctx context.Context) ([]PairRecord, error) {
	var records []PairRecord
	err := c.execute(c.request(ctx).SetResult(&records), http.MethodGet, "/likes")
	return records, err
}

// ListFavorites fetches the caller's favorites.
func (c *Client) ListFavorites(ctx context.Context) ([]PairRecord, error) {
	var records []PairRecord
	err := c.execute(c.request(ctx).SetResult(&records), http.MethodGet, "/favorites")
	return records, err
}

// ToggleLike flips the caller's like on the video and reports whether it is now active.
func (c *Client) ToggleLike(ctx context.Context, videoID int64) (bool, error) {
	var result struct {
		Liked bool `json:"liked"`
	}
	err := c.execute(c.request(ctx).SetBody(pairRequest{VideoID: videoID}).SetResult(&result), http.MethodPost, "/likes")
	return result.Liked, err
}

// ToggleFavorite flips the caller's favorite on the video and reports whether it is now active.
func (c *Client) ToggleFavorite(ctx context.Context, videoID int64) (bool, error) {
	var result struct {
		Favorited bool `json:"favorited"`
	}
	err := c.execute(c.request(ctx).SetBody(pairRequest{VideoID: videoID}).SetResult(&result), http.MethodPost, "/favorites")
	return result.Favorited, err
}

// ListComments fetches a video's comments in creation order.
func (c *Client) ListComments(ctx context.Context, videoID int64) ([]Comment, error) {
	var comments []Comment
	err := c.execute(c.request(ctx).
		SetQueryParam("videoId", strconv.FormatInt(videoID, 10)).
		SetResult(&comments), http.MethodGet, "/comments")
	return comments, err
}

// AddComment posts a comment as the caller.
func (c *Client) AddComment(ctx context.Context, videoID int64, content string) (Comment, error) {
	var comment Comment
	err := c.execute(c.request(ctx).
		SetBody(commentRequest{Content: content, VideoID: videoID}).
		SetResult(&comment), http.MethodPost, "/comments")
	return comment, err
}

// DeleteComment removes one of the caller's comments.
func (c *Client) DeleteComment(ctx context.Context, commentID int64) error {
	return c.execute(c.request(ctx), http.MethodDelete, "/comments/"+strconv.FormatInt(commentID, 10))
}

// OpenEvents opens the server-sent event stream. The caller closes the body.
func (c *Client) OpenEvents(ctx context.Context) (io.ReadCloser, error) {
	response, err := c.request(ctx).
		SetHeader("Accept", "text/event-stream").
		SetDoNotParseResponse(true).
		Get("/events")
	if err != nil {
		return nil, err
	}
	body := response.RawBody()
	if response.StatusCode() != http.StatusOK {
		defer body.Close()
		payload, _ := io.ReadAll(body)
		return nil, &APIError{Status: response.StatusCode(), Message: strings.TrimSpace(string(payload))}
	}
	return body, nil
}
