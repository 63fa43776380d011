// Package chat keeps the transcript of a conversation with the AI donor assistant.
package chat

import (
	"time"

	"bloodfinder/internal/aiclient"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// State tracks a message through its turn. User messages start pending and become
// resolved or failed once the endpoint answers.
type State string

const (
	StatePending  State = "pending"
	StateResolved State = "resolved"
	StateFailed   State = "failed"
)

// Message is one transcript entry.
type Message struct {
	ID      string         `json:"id"`
	Role    Role           `json:"role"`
	Content string         `json:"content"`
	SQL     string         `json:"sql,omitempty"`
	Rows    []aiclient.Row `json:"rows,omitempty"`
	TS      time.Time      `json:"ts"`
	State   State          `json:"state"`
}

// Toast is a transient notification for the person chatting.
type Toast struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Variant     string `json:"variant,omitempty"`
}

// Vote is thumbs up or down on an assistant message.
type Vote string

const (
	VoteUp   Vote = "up"
	VoteDown Vote = "down"
)

const (
	welcomeID   = "welcome"
	welcomeText = "Hi! I'm your AI blood donor assistant. Ask me things like:\n\n" +
		"• \"Find O+ donors in Mechanical branch\"\n" +
		"• \"Show emergency requests from today\"\n" +
		"• \"List all B- donors with phone numbers\"\n\n" +
		"I'll query the database and make phone numbers clickable for WhatsApp!"
	fallbackAnswer = "I couldn't parse a response from the server."
)
