package backend

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"

	"talkbox/internal/domain"
)

const (
	DefaultBaseURL = "http://localhost:5001"
	DefaultTimeout = 30 * time.Second
)

// Config controls the conversation backend client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client talks to the conversation backend over its JSON API.
type Client struct {
	http *resty.Client
}

type startRequest struct {
	UserID string `json:"user_id"`
}

type startResponse struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

type textRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
}

type audioRequest struct {
	ConversationID string `json:"conversation_id"`
	Audio          string `json:"audio"`
}

type exportRequest struct {
	ConversationID string `json:"conversation_id"`
}

type replyResponse struct {
	Message       string `json:"message"`
	Transcription string `json:"transcription"`
	IsFinal       bool   `json:"is_final"`
}

type exportResponse struct {
	FileURL string `json:"file_url"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("Content-Type", "application/json").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)

	return &Client{http: httpClient}
}

func (c *Client) StartConversation(ctx context.Context, userID string) (domain.ConversationStart, error) {
	var resp startResponse
	if err := c.post(ctx, "start conversation", "/conversation", startRequest{UserID: userID}, &resp); err != nil {
		return domain.ConversationStart{}, err
	}
	if resp.ConversationID == "" {
		return domain.ConversationStart{}, &domain.NetworkError{
			Op:  "start conversation",
			Err: errors.New("response has no conversation_id"),
		}
	}
	return domain.ConversationStart{ConversationID: resp.ConversationID, Greeting: resp.Message}, nil
}

func (c *Client) SendText(ctx context.Context, conversationID, text string) (domain.Reply, error) {
	var resp replyResponse
	if err := c.post(ctx, "send text", "/process", textRequest{ConversationID: conversationID, Text: text}, &resp); err != nil {
		return domain.Reply{}, err
	}
	return domain.Reply{Message: resp.Message, IsFinal: resp.IsFinal}, nil
}

func (c *Client) SendAudio(ctx context.Context, conversationID string, audio []byte) (domain.Reply, error) {
	req := audioRequest{
		ConversationID: conversationID,
		Audio:          base64.StdEncoding.EncodeToString(audio),
	}
	var resp replyResponse
	if err := c.post(ctx, "send audio", "/process-audio", req, &resp); err != nil {
		return domain.Reply{}, err
	}
	return domain.Reply{Message: resp.Message, Transcription: resp.Transcription, IsFinal: resp.IsFinal}, nil
}

func (c *Client) RequestExport(ctx context.Context, conversationID string) (domain.Export, error) {
	var resp exportResponse
	if err := c.post(ctx, "generate pdf", "/generate-pdf", exportRequest{ConversationID: conversationID}, &resp); err != nil {
		return domain.Export{}, err
	}
	return domain.Export{FileURL: resp.FileURL}, nil
}

func (c *Client) post(ctx context.Context, op, path string, body any, out any) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(out).
		SetError(&errorResponse{}).
		ForceContentType("application/json").
		Post(path)
	if err != nil {
		if resp != nil && resp.IsSuccess() {
			return &domain.NetworkError{Op: op, Err: fmt.Errorf("decode response: %w", err)}
		}
		return &domain.NetworkError{Op: op, Err: err}
	}
	if resp.IsError() {
		return &domain.NetworkError{Op: op, Err: statusError(resp)}
	}
	return nil
}

func statusError(resp *resty.Response) error {
	if body, ok := resp.Error().(*errorResponse); ok && body.Error != "" {
		return fmt.Errorf("status %d: %s", resp.StatusCode(), body.Error)
	}
	return fmt.Errorf("status %d", resp.StatusCode())
}
