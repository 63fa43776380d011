// Package telegram talks to the Telegram Bot API sendMessage method.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const DefaultParseMode = "HTML"

// ErrNotConfigured is returned when no bot token was supplied.
var ErrNotConfigured = errors.New("telegram bot token not configured")

// Message is the sendMessage payload.
type Message struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// Response is the raw upstream answer.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// OK reports a 2xx status.
func (r Response) OK() bool { return r.StatusCode >= 200 && r.StatusCode < 300 }

// Result is the decoded Bot API envelope.
type Result struct {
	OK          bool   `json:"ok"`
	Description string `json:"description,omitempty"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// Decode parses the body as a Bot API envelope.
func (r Response) Decode() (Result, error) {
	var res Result
	if err := json.Unmarshal(r.Body, &res); err != nil {
		return Result{}, fmt.Errorf("decode telegram response: %w", err)
	}
	return res, nil
}

// Client sends messages with a single bot token. The token is never logged.
type Client struct {
	http   *resty.Client
	token  string
	logger *zap.Logger
}

// NewClient creates a client against baseURL (normally https://api.telegram.org).
func NewClient(baseURL, token string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	http := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(30*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Client{http: http, token: token, logger: logger}
}

// Configured reports whether a token is present.
func (c *Client) Configured() bool { return c != nil && c.token != "" }

// Send posts msg to sendMessage and returns the upstream status and body whatever the
// status was. err is only set when the request could not be made.
func (c *Client) Send(ctx context.Context, msg Message) (Response, error) {
	if !c.Configured() {
		return Response{}, ErrNotConfigured
	}
	if msg.ParseMode == "" {
		msg.ParseMode = DefaultParseMode
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(msg).
		Post("/bot" + c.token + "/sendMessage")
	if err != nil {
		err = c.redact(err)
		c.logger.Error("telegram sendMessage failed", zap.String("chat_id", msg.ChatID), zap.Error(err))
		return Response{}, err
	}

	out := Response{
		StatusCode:  resp.StatusCode(),
		ContentType: resp.Header().Get("Content-Type"),
		Body:        resp.Body(),
	}
	if !out.OK() {
		c.logger.Warn("telegram sendMessage rejected",
			zap.String("chat_id", msg.ChatID),
			zap.Int("status_code", out.StatusCode),
		)
	}
	return out, nil
}

// redact strips the token from transport errors, which quote the request URL.
func (c *Client) redact(err error) error {
	return errors.New(strings.ReplaceAll(err.Error(), c.token, "<redacted>"))
}
