package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bloodfinder/internal/aiclient"
	"bloodfinder/internal/apperr"
	"bloodfinder/internal/metrics"
)

// ErrBusy is returned when a turn is already waiting on the endpoint.
var ErrBusy = errors.New("a reply is still loading")

// Asker sends one turn to the AI endpoint.
type Asker interface {
	Ask(ctx context.Context, req aiclient.Request) (aiclient.Reply, error)
}

// Clipboard receives copied text.
type Clipboard interface {
	Write(text string) error
}

// Turn is what one Ask produced. Toast is set when the endpoint call failed.
type Turn struct {
	User  Message `json:"user"`
	Reply Message `json:"reply"`
	Toast *Toast  `json:"toast,omitempty"`
}

// Transcript is a point-in-time copy of a conversation.
type Transcript struct {
	Messages  []Message `json:"messages"`
	Loading   bool      `json:"loading"`
	SessionID string    `json:"session_id,omitempty"`
}

// Controller owns one conversation. Only one turn is in flight at a time.
type Controller struct {
	asker     Asker
	clipboard Clipboard
	logger    *zap.Logger
	now       func() time.Time

	mu        sync.Mutex
	messages  []Message
	loading   bool
	sessionID string
	touched   time.Time
}

// Option configures a Controller.
type Option func(*Controller)

func WithClipboard(c Clipboard) Option { return func(ctl *Controller) { ctl.clipboard = c } }

func WithLogger(l *zap.Logger) Option { return func(ctl *Controller) { ctl.logger = l } }

func WithClock(now func() time.Time) Option { return func(ctl *Controller) { ctl.now = now } }

// NewController starts a conversation seeded with the welcome message.
func NewController(asker Asker, opts ...Option) *Controller {
	c := &Controller{asker: asker, logger: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		o(c)
	}
	c.touched = c.now()
	c.messages = []Message{{
		ID:      welcomeID,
		Role:    RoleAssistant,
		Content: welcomeText,
		TS:      c.now(),
		State:   StateResolved,
	}}
	return c
}

// Transcript returns a copy of the current state.
func (c *Controller) Transcript() Transcript {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs := make([]Message, len(c.messages))
	copy(msgs, c.messages)
	return Transcript{Messages: msgs, Loading: c.loading, SessionID: c.sessionID}
}

// Ask appends a pending user message, calls the endpoint and appends the assistant
// answer. Endpoint failures are not returned as errors: the user message is marked
// failed, an apology is appended and Turn.Toast is set.
func (c *Controller) Ask(ctx context.Context, text string) (Turn, error) {
	c.mu.Lock()
	user, session, err := c.beginLocked(text)
	c.mu.Unlock()
	if err != nil {
		return Turn{}, err
	}
	return c.complete(ctx, user, session), nil
}

// Regenerate drops an assistant message and asks again with the closest user message
// before it, keeping the session id.
func (c *Controller) Regenerate(ctx context.Context, messageID string) (Turn, error) {
	c.mu.Lock()
	idx := c.indexLocked(messageID)
	if idx < 0 {
		c.mu.Unlock()
		return Turn{}, apperr.NotFound("message %q not found", messageID)
	}
	if c.messages[idx].Role != RoleAssistant {
		c.mu.Unlock()
		return Turn{}, apperr.Validation("only assistant messages can be regenerated")
	}
	if c.loading {
		c.mu.Unlock()
		return Turn{}, ErrBusy
	}
	prompt := ""
	for i := idx - 1; i >= 0; i-- {
		if c.messages[i].Role == RoleUser {
			prompt = c.messages[i].Content
			break
		}
	}
	if prompt == "" {
		c.mu.Unlock()
		return Turn{}, apperr.Validation("no question precedes this message")
	}
	c.messages = append(c.messages[:idx], c.messages[idx+1:]...)
	user, session, err := c.beginLocked(prompt)
	c.mu.Unlock()
	if err != nil {
		return Turn{}, err
	}
	return c.complete(ctx, user, session), nil
}

// Copy writes text to the clipboard. The transcript is unchanged.
func (c *Controller) Copy(text string) Toast {
	if c.clipboard == nil {
		return Toast{Title: "Failed to copy", Variant: "destructive"}
	}
	if err := c.clipboard.Write(text); err != nil {
		c.logger.Debug("clipboard write failed", zap.Error(err))
		return Toast{Title: "Failed to copy", Variant: "destructive"}
	}
	return Toast{Title: "Copied to clipboard"}
}

// Feedback records a vote on an assistant message. The transcript is unchanged.
func (c *Controller) Feedback(messageID string, vote Vote) (Toast, error) {
	if vote != VoteUp && vote != VoteDown {
		return Toast{}, apperr.Validation("vote must be %q or %q", VoteUp, VoteDown)
	}
	c.mu.Lock()
	idx := c.indexLocked(messageID)
	var role Role
	if idx >= 0 {
		role = c.messages[idx].Role
	}
	c.mu.Unlock()
	if idx < 0 {
		return Toast{}, apperr.NotFound("message %q not found", messageID)
	}
	if role != RoleAssistant {
		return Toast{}, apperr.Validation("feedback applies to assistant messages")
	}

	metrics.ChatFeedback.WithLabelValues(string(vote)).Inc()
	if vote == VoteUp {
		return Toast{Title: "Thanks for the feedback!"}, nil
	}
	return Toast{Title: "We'll work on improving this response"}, nil
}

func (c *Controller) beginLocked(text string) (Message, string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, "", apperr.Validation("message is required")
	}
	if c.loading {
		return Message{}, "", ErrBusy
	}
	user := Message{
		ID:      uuid.NewString(),
		Role:    RoleUser,
		Content: text,
		TS:      c.now(),
		State:   StatePending,
	}
	c.messages = append(c.messages, user)
	c.loading = true
	c.touched = c.now()
	return user, c.sessionID, nil
}

func (c *Controller) complete(ctx context.Context, user Message, session string) Turn {
	reply, err := c.asker.Ask(ctx, aiclient.Request{Message: user.Content, SessionID: session})
	metrics.ChatTurns.WithLabelValues(metrics.Result(err)).Inc()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loading = false
	c.touched = c.now()

	turn := Turn{}
	userState := StateResolved
	answer := Message{ID: uuid.NewString(), Role: RoleAssistant, TS: c.now(), State: StateResolved}
	if err != nil {
		c.logger.Warn("chat turn failed", zap.Error(err))
		userState = StateFailed
		answer.State = StateFailed
		answer.Content = "Sorry, there was an error: " + err.Error() +
			"\n\nPlease check that AI_CHAT_ENDPOINT is configured correctly."
		turn.Toast = &Toast{
			Title:       "Chat Error",
			Description: "Failed to get AI response. Please check your connection and try again.",
			Variant:     "destructive",
		}
	} else {
		answer.Content = reply.Answer
		if strings.TrimSpace(answer.Content) == "" {
			answer.Content = fallbackAnswer
		}
		answer.SQL = reply.SQL
		answer.Rows = reply.Rows
		if reply.SessionID != "" {
			c.sessionID = reply.SessionID
		}
	}

	if idx := c.indexLocked(user.ID); idx >= 0 {
		c.messages[idx].State = userState
		user = c.messages[idx]
	}
	c.messages = append(c.messages, answer)
	turn.User = user
	turn.Reply = answer
	return turn
}

func (c *Controller) indexLocked(id string) int {
	for i, m := range c.messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func (c *Controller) lastTouched() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.touched
}
