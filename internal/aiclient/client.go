// Package aiclient calls the AI chat endpoint that answers questions about the donor
// database.
package aiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"bloodfinder/internal/apperr"
)

// Request is the outgoing turn.
type Request struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// Reply is the endpoint answer. Only Answer is always present.
type Reply struct {
	Answer    string `json:"answer"`
	SQL       string `json:"sql,omitempty"`
	Rows      []Row  `json:"rows,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// Client posts chat turns to a single endpoint URL.
type Client struct {
	http     *resty.Client
	endpoint string
	logger   *zap.Logger
}

func NewClient(endpoint string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	http := resty.New().
		SetTimeout(30*time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &Client{http: http, endpoint: endpoint, logger: logger}
}

// Ask sends one turn. Network failures, non-2xx answers and undecodable bodies are
// transport errors.
func (c *Client) Ask(ctx context.Context, req Request) (Reply, error) {
	if c.endpoint == "" {
		return Reply{}, apperr.Config("AI_CHAT_ENDPOINT is not configured")
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post(c.endpoint)
	if err != nil {
		c.logger.Error("AI endpoint call failed", zap.Error(err))
		return Reply{}, apperr.Transport(err, "AI endpoint unreachable")
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		c.logger.Warn("AI endpoint returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.Bool("has_session", req.SessionID != ""),
		)
		return Reply{}, apperr.Transport(fmt.Errorf("status %d", resp.StatusCode()), "AI endpoint returned an error")
	}

	var reply Reply
	if err := json.Unmarshal(resp.Body(), &reply); err != nil {
		return Reply{}, apperr.Transport(err, "decode AI endpoint response")
	}
	return reply, nil
}
