// Package relay is the server-held-credential endpoint that forwards alert text to the
// Telegram channel.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bloodfinder/internal/metrics"
	"bloodfinder/internal/telegram"
)

// Response modes.
const (
	ModePassthrough = "passthrough"
	ModeNormalized  = "normalized"
)

const testMessage = "🔧 <b>Connection Test</b>\n\n✅ %s is now connected and ready to send emergency alerts!"

// Sender sends one Telegram message.
type Sender interface {
	Configured() bool
	Send(ctx context.Context, msg telegram.Message) (telegram.Response, error)
}

// Request is the relay body. Only Text is required.
type Request struct {
	Text                  string `json:"text"`
	ChatID                string `json:"chat_id"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview *bool  `json:"disable_web_page_preview"`
}

// Handler serves POST /api/telegram-send.
type Handler struct {
	sender    Sender
	channelID string
	mode      string
	appName   string
	logger    *zap.Logger
}

// NewHandler creates a relay. channelID is the default destination; mode is
// ModePassthrough or ModeNormalized.
func NewHandler(sender Sender, channelID, mode, appName string, logger *zap.Logger) *Handler {
	if mode != ModeNormalized {
		mode = ModePassthrough
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{sender: sender, channelID: channelID, mode: mode, appName: appName, logger: logger}
}

// Send validates configuration, then text, then forwards one message. Each call sends
// one message; there is no deduplication.
func (h *Handler) Send(c *gin.Context) {
	// An empty body is a request with no fields, so it still reaches the config check.
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	chatID := strings.TrimSpace(req.ChatID)
	if chatID == "" {
		chatID = h.channelID
	}
	if !h.sender.Configured() || chatID == "" {
		metrics.RelaySends.WithLabelValues("not_configured").Inc()
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Missing TG_BOT_TOKEN or TG_CHANNEL_ID"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		metrics.RelaySends.WithLabelValues("invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'text'"})
		return
	}

	msg := telegram.Message{
		ChatID:                chatID,
		Text:                  req.Text,
		ParseMode:             req.ParseMode,
		DisableWebPagePreview: true,
	}
	if msg.ParseMode == "" {
		msg.ParseMode = telegram.DefaultParseMode
	}
	if req.DisableWebPagePreview != nil {
		msg.DisableWebPagePreview = *req.DisableWebPagePreview
	}
	h.forward(c, msg)
}

// Test posts a fixed connection-test message to the default channel.
func (h *Handler) Test(c *gin.Context) {
	if !h.sender.Configured() || h.channelID == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Missing TG_BOT_TOKEN or TG_CHANNEL_ID"})
		return
	}
	h.forward(c, telegram.Message{
		ChatID:                h.channelID,
		Text:                  fmt.Sprintf(testMessage, h.appName),
		ParseMode:             telegram.DefaultParseMode,
		DisableWebPagePreview: true,
	})
}

func (h *Handler) forward(c *gin.Context, msg telegram.Message) {
	resp, err := h.sender.Send(c.Request.Context(), msg)
	if err != nil {
		metrics.RelaySends.WithLabelValues("error").Inc()
		h.logger.Error("relay send failed", zap.String("chat_id", msg.ChatID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send Telegram message", "details": err.Error()})
		return
	}
	if resp.OK() {
		metrics.RelaySends.WithLabelValues("ok").Inc()
	} else {
		metrics.RelaySends.WithLabelValues("rejected").Inc()
	}

	if h.mode == ModeNormalized {
		h.normalized(c, resp)
		return
	}
	if !json.Valid(resp.Body) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upstream returned a non-JSON body"})
		return
	}
	status := resp.StatusCode
	if resp.OK() {
		status = http.StatusOK
	}
	c.Data(status, "application/json", resp.Body)
}

func (h *Handler) normalized(c *gin.Context, resp telegram.Response) {
	if !resp.OK() {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to send Telegram message",
			"details": string(resp.Body),
		})
		return
	}
	res, err := resp.Decode()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "messageId": res.Result.MessageID})
}
