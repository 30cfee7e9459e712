// Package landchat provides a client for the landchat messaging API and its
// websocket channel.
package landchat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/eldtechnologies/landchat/internal/handlers"
	"github.com/eldtechnologies/landchat/internal/models"
)

// Client is a landchat API client.
type Client struct {
	BaseURL    string
	Token      string // bearer token, required for Send and Chats
	HTTPClient *http.Client
}

// NewClient creates a new client.
func NewClient(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("landchat error %d: %s", e.Status, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		return &APIError{Status: resp.StatusCode, Message: errResp.Error}
	}

	if out == nil {
		return nil
	}
	return json.Unmarshal(respBody, out)
}

// Health returns the server health report. A degraded server is an APIError.
func (c *Client) Health(ctx context.Context) (*handlers.HealthResponse, error) {
	var resp handlers.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// History returns one page (1-based) of the conversation between a and b.
func (c *Client) History(ctx context.Context, a, b string, page int) ([]models.Message, error) {
	path := "/api/v1/messages/" + url.PathEscape(a) + "/" + url.PathEscape(b)
	if page > 1 {
		path += "?page=" + strconv.Itoa(page)
	}

	var resp handlers.MessagesResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// Latest returns the newest message between a and b, or nil.
func (c *Client) Latest(ctx context.Context, a, b string) (*models.Message, error) {
	var resp handlers.MessagesResponse
	path := "/api/v1/messages/latest/" + url.PathEscape(a) + "/" + url.PathEscape(b)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	if len(resp.Messages) == 0 {
		return nil, nil
	}
	return &resp.Messages[0], nil
}

// SendRequest is the body of POST /api/v1/messages.
type SendRequest struct {
	SenderID   string     `json:"senderId"`
	ReceiverID string     `json:"receiverId"`
	Message    string     `json:"message"`
	Timestamp  *time.Time `json:"timestamp,omitempty"`
}

// Send stores and delivers a message. SenderID must match the token subject.
func (c *Client) Send(ctx context.Context, req SendRequest) (*models.Message, error) {
	var msg models.Message
	if err := c.do(ctx, http.MethodPost, "/api/v1/messages", req, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// AdminChats returns the admin account's chat list.
func (c *Client) AdminChats(ctx context.Context) ([]models.ChatSummary, error) {
	var resp handlers.ChatsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/messages/chats", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Chats, nil
}

// Chats returns recipientID's chat list.
func (c *Client) Chats(ctx context.Context, recipientID string) ([]models.ChatSummary, error) {
	var resp handlers.ChatsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/messages/chats/"+url.PathEscape(recipientID), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Chats, nil
}

// AdminProfile returns the admin account users chat with.
func (c *Client) AdminProfile(ctx context.Context) (*handlers.ProfileResponse, error) {
	var resp handlers.ProfileEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/v1/users/admin", nil, &resp); err != nil {
		return nil, err
	}
	return &resp.Data, nil
}
