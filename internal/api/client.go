// Package api is the client for the marketplace backend's conversation
// endpoints.
package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/broomate/roomie/internal/models"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var ErrUnauthorized = errors.New("backend rejected credentials")

type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Body)
}

type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type Attachment struct {
	Filename string
	Data     []byte
}

type Client struct {
	http *resty.Client
	log  *zap.Logger
}

func New(cfg Config, log *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	r := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		r.SetAuthToken(cfg.Token)
	}
	return &Client{http: r, log: log.Named("api")}
}

func (c *Client) SetToken(token string) {
	c.http.SetAuthToken(token)
}

// ListConversations calls GET /conversations.
func (c *Client) ListConversations(ctx context.Context) ([]models.Conversation, error) {
	resp, err := c.http.R().SetContext(ctx).Get("/conversations")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list conversations")
	}
	if err := checkStatus(resp); err != nil {
		return nil, errors.Wrap(err, "failed to list conversations")
	}
	return models.DecodeConversations(resp.Body())
}

// GetConversation calls GET /conversations/{id}, which includes messages.
func (c *Client) GetConversation(ctx context.Context, id string) (models.ConversationDetail, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		Get("/conversations/{id}")
	if err != nil {
		return models.ConversationDetail{}, errors.Wrapf(err, "failed to load conversation %s", id)
	}
	if err := checkStatus(resp); err != nil {
		return models.ConversationDetail{}, errors.Wrapf(err, "failed to load conversation %s", id)
	}
	return models.DecodeConversationDetail(resp.Body())
}

// SendMessage posts a multipart message with an optional media file and
// returns the message as the backend stored it.
func (c *Client) SendMessage(ctx context.Context, conversationID, content string, media *Attachment) (models.Message, error) {
	req := c.http.R().
		SetContext(ctx).
		SetPathParam("id", conversationID).
		SetMultipartFormData(map[string]string{"content": content})
	if media != nil {
		req.SetFileReader("media", media.Filename, bytes.NewReader(media.Data))
	}

	resp, err := req.Post("/conversations/{id}/messages")
	if err != nil {
		return models.Message{}, errors.Wrap(err, "failed to send message")
	}
	if err := checkStatus(resp); err != nil {
		return models.Message{}, errors.Wrap(err, "failed to send message")
	}

	// Some deployments omit conversationId on the created message.
	msg, err := models.DecodeMessageIn(resp.Body(), conversationID)
	if err != nil {
		return models.Message{}, err
	}
	c.log.Debug("message sent", zap.String("conversation_id", conversationID), zap.String("message_id", msg.ID))
	return msg, nil
}

func checkStatus(resp *resty.Response) error {
	if resp.StatusCode() == http.StatusUnauthorized || resp.StatusCode() == http.StatusForbidden {
		return ErrUnauthorized
	}
	if resp.IsError() {
		return &StatusError{Code: resp.StatusCode(), Body: string(resp.Body())}
	}
	return nil
}
