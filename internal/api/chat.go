package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bloodfinder/internal/chat"
	"bloodfinder/internal/config"
	"bloodfinder/internal/metrics"
	"bloodfinder/internal/render"
)

// messageView is a transcript entry with its display rendering.
type messageView struct {
	chat.Message
	HTML  string        `json:"html,omitempty"`
	Table *render.Table `json:"table,omitempty"`
}

type transcriptView struct {
	ID        string        `json:"id"`
	Messages  []messageView `json:"messages"`
	Loading   bool          `json:"loading"`
	SessionID string        `json:"session_id,omitempty"`
}

type turnView struct {
	User  messageView `json:"user"`
	Reply messageView `json:"reply"`
	Toast *chat.Toast `json:"toast,omitempty"`
}

func (h *Handler) view(m chat.Message) messageView {
	v := messageView{Message: m}
	if m.Role != chat.RoleAssistant {
		return v
	}
	html, err := h.renderer.HTML(m.Content)
	if err != nil {
		h.logger.Warn("render assistant message", zap.String("message_id", m.ID), zap.Error(err))
	} else {
		v.HTML = html
	}
	v.Table = render.Rows(m.Rows)
	return v
}

func (h *Handler) transcript(id string, ctl *chat.Controller) transcriptView {
	tr := ctl.Transcript()
	out := transcriptView{ID: id, Loading: tr.Loading, SessionID: tr.SessionID}
	for _, m := range tr.Messages {
		out.Messages = append(out.Messages, h.view(m))
	}
	return out
}

func (h *Handler) turn(t chat.Turn) turnView {
	return turnView{User: h.view(t.User), Reply: h.view(t.Reply), Toast: t.Toast}
}

// CreateChat starts a conversation. It answers 503 while the AI endpoint is not
// configured.
func (h *Handler) CreateChat(c *gin.Context) {
	if missing := h.cfg.MissingKeys([]string{config.KeyAIChatEndpoint}); len(missing) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI chat is not configured", "missing": missing})
		return
	}
	id, ctl := h.chats.Create()
	metrics.ChatConversations.Set(float64(h.chats.Len()))
	c.JSON(http.StatusCreated, h.transcript(id, ctl))
}

func (h *Handler) GetChat(c *gin.Context) {
	id := c.Param("id")
	ctl, err := h.chats.Get(id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.transcript(id, ctl))
}

type askRequest struct {
	Message string `json:"message" binding:"required"`
}

func (h *Handler) AskChat(c *gin.Context) {
	ctl, err := h.chats.Get(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	t, err := ctl.Ask(c.Request.Context(), req.Message)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.turn(t))
}

func (h *Handler) RegenerateChat(c *gin.Context) {
	ctl, err := h.chats.Get(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	t, err := ctl.Regenerate(c.Request.Context(), c.Param("msg"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.turn(t))
}

type feedbackRequest struct {
	Vote chat.Vote `json:"vote" binding:"required,oneof=up down"`
}

func (h *Handler) ChatFeedback(c *gin.Context) {
	ctl, err := h.chats.Get(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	toast, err := ctl.Feedback(c.Param("msg"), req.Vote)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"toast": toast})
}
