// Package api is the HTTP/JSON client for the marketplace chat service.
// All requests carry the profile's bearer token; response statuses are
// classified into the sentinel errors the sync engine keys on.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// CredentialSource exposes the current session credential, if any.
type CredentialSource interface {
	Token() (string, bool)
}

// Client talks to the remote chat service.
type Client struct {
	baseURL string
	http    *http.Client
	creds   CredentialSource
	logger  *zap.Logger

	// retryMaxElapsed bounds transport-level retries on user-initiated
	// calls. Responses with a status code are never retried here.
	retryMaxElapsed time.Duration
}

// New creates a client for the chat service rooted at baseURL.
func New(baseURL string, creds CredentialSource, logger *zap.Logger) *Client {
	tr := &http.Transport{
		DialContext:     (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		MaxIdleConns:    10,
		IdleConnTimeout: 90 * time.Second,
	}
	return &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		http:            &http.Client{Transport: tr, Timeout: 15 * time.Second},
		creds:           creds,
		logger:          logger,
		retryMaxElapsed: 5 * time.Second,
	}
}

// ListConversations fetches the inbox: all conversations for the current
// session plus the server-computed aggregate unread count.
func (c *Client) ListConversations(ctx context.Context) (*Inbox, error) {
	var out Inbox
	if err := c.do(ctx, http.MethodGet, "/chats", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListMessages fetches the full ordered message list of one conversation.
// The server marks fetched messages as read.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]Message, error) {
	var out struct {
		Messages []Message `json:"messages"`
	}
	path := "/chats/" + url.PathEscape(conversationID) + "/messages"
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// SendMessage posts a new message and returns the server-confirmed copy.
func (c *Client) SendMessage(ctx context.Context, conversationID, text string) (*Message, error) {
	var out Message
	path := "/chats/" + url.PathEscape(conversationID) + "/messages"
	body := map[string]string{"text": text}
	if err := c.doRetry(ctx, http.MethodPost, path, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteConversation deletes one conversation. A 404 comes back as
// ErrNotFound; callers treat it as already-deleted.
func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	return c.doRetry(ctx, http.MethodDelete, "/chats/"+url.PathEscape(conversationID), nil, nil)
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	var out struct {
		Token string `json:"token"`
		User  struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"user"`
	}
	body := map[string]string{"email": email, "password": password}
	if err := c.doRetry(ctx, http.MethodPost, "/auth/login", body, &out); err != nil {
		return nil, err
	}
	return &Session{
		Token:  out.Token,
		UserID: out.User.ID,
		Name:   out.User.Name,
		Email:  out.User.Email,
	}, nil
}

// Logout invalidates the token server-side. Best effort; the caller clears
// the local credential regardless.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/auth/logout", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s %s: encode body: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := c.creds.Token(); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%s %s: %w", method, path, classify(resp.StatusCode, serverMessage(resp.Body)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		}
	}
	return nil
}

// doRetry wraps do with a short exponential backoff for transport-level
// failures on user-initiated calls. Any response that carried a status code
// is final: retrying a send the server may have applied would duplicate it.
func (c *Client) doRetry(ctx context.Context, method, path string, body, out any) error {
	op := func() error {
		err := c.do(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			if c.logger != nil {
				c.logger.Debug("retrying after transport error",
					zap.String("method", method), zap.String("path", path), zap.Error(err))
			}
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.retryMaxElapsed
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}

func serverMessage(r io.Reader) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 64<<10)).Decode(&payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}
