package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bloodfinder/internal/auth"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sess, token, err := h.sessions.Login(req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sess, "token": token})
}

func (h *Handler) Logout(c *gin.Context) {
	if err := h.sessions.Logout(c.Request.Context(), auth.BearerToken(c)); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Session reports whether the caller's bearer token is a live admin session.
func (h *Handler) Session(c *gin.Context) {
	c.JSON(http.StatusOK, h.sessions.Current(c.Request.Context(), auth.BearerToken(c)))
}
