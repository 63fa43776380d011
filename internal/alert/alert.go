// Package alert broadcasts new emergency requests to the donor channel, either inline
// or through the queue for cmd/worker.
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bloodfinder/internal/emergency"
	"bloodfinder/internal/queue"
	"bloodfinder/internal/telegram"
)

// Sender is the slice of the Telegram client used here.
type Sender interface {
	Configured() bool
	Send(ctx context.Context, msg telegram.Message) (telegram.Response, error)
}

// Direct posts the alert to the channel during the request.
type Direct struct {
	sender    Sender
	channelID string
	appName   string
	loc       *time.Location
}

// NewDirect creates an inline alerter that prints deadlines in UTC.
func NewDirect(sender Sender, channelID, appName string) *Direct {
	return &Direct{sender: sender, channelID: channelID, appName: appName, loc: time.UTC}
}

// In sets the zone deadlines are printed in.
func (d *Direct) In(loc *time.Location) *Direct {
	if loc != nil {
		d.loc = loc
	}
	return d
}

// Alert renders and sends r. A non-2xx upstream answer is an error.
func (d *Direct) Alert(ctx context.Context, r emergency.Request) error {
	if !d.sender.Configured() || d.channelID == "" {
		return fmt.Errorf("telegram relay is not configured")
	}
	resp, err := d.sender.Send(ctx, telegram.Message{
		ChatID:                d.channelID,
		Text:                  emergency.AlertText(r, d.appName, d.loc),
		ParseMode:             telegram.DefaultParseMode,
		DisableWebPagePreview: true,
	})
	if err != nil {
		return err
	}
	if !resp.OK() {
		if res, derr := resp.Decode(); derr == nil && res.Description != "" {
			return fmt.Errorf("telegram returned %d: %s", resp.StatusCode, res.Description)
		}
		return fmt.Errorf("telegram returned %d", resp.StatusCode)
	}
	return nil
}

// Queued hands the request to the worker. Success means enqueued, not delivered.
type Queued struct {
	q queue.Queue
}

func NewQueued(q queue.Queue) *Queued {
	return &Queued{q: q}
}

func (a *Queued) Alert(ctx context.Context, r emergency.Request) error {
	msg, err := queue.NewMessage(queue.TypeEmergencyAlert, r)
	if err != nil {
		return err
	}
	if err := a.q.Publish(ctx, msg); err != nil {
		return fmt.Errorf("enqueue alert: %w", err)
	}
	return nil
}

// Worker drains queued alerts and sends them with a Direct alerter.
type Worker struct {
	direct *Direct
	logger *zap.Logger
}

func NewWorker(direct *Direct, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{direct: direct, logger: logger}
}

// Handle processes one message. Unknown types are ignored.
func (w *Worker) Handle(ctx context.Context, msg queue.Message) error {
	if msg.Type != queue.TypeEmergencyAlert {
		w.logger.Debug("skipping message", zap.String("type", msg.Type))
		return nil
	}
	var r emergency.Request
	if err := json.Unmarshal(msg.Body, &r); err != nil {
		return fmt.Errorf("decode alert: %w", err)
	}
	if err := w.direct.Alert(ctx, r); err != nil {
		return fmt.Errorf("send alert %s: %w", r.ID, err)
	}
	w.logger.Info("alert sent", zap.String("request_id", r.ID), zap.String("blood_group", string(r.BloodGroup)))
	return nil
}

// Run consumes q until ctx ends. Failed alerts are logged and not retried.
func (w *Worker) Run(ctx context.Context, q queue.Queue) error {
	msgs, err := q.Consume(ctx)
	if err != nil {
		return err
	}
	for msg := range msgs {
		if err := w.Handle(ctx, msg); err != nil {
			w.logger.Warn("alert failed", zap.Error(err))
		}
	}
	return nil
}
