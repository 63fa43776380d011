package emergency

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"bloodfinder/internal/apperr"
	"bloodfinder/internal/model"
	"bloodfinder/internal/phone"
)

// localNeedBy is what an HTML datetime-local input submits: wall time, no zone.
const localNeedBy = "2006-01-02T15:04"

// CreateInput is the emergency request form.
type CreateInput struct {
	RequesterName string `json:"requester_name"`
	BloodGroup    string `json:"blood_group" binding:"required"`
	UnitsNeeded   int    `json:"units_needed" binding:"omitempty,gte=1"`
	Hospital      string `json:"hospital"`
	Location      string `json:"location"`
	ContactPhone  string `json:"contact_phone"`
	NeedBy        string `json:"need_by"`
}

// Created is the outcome of a submission. The request is saved even when the alert
// could not be sent; AlertWarning then explains why.
type Created struct {
	Request      Request `json:"request"`
	AlertSent    bool    `json:"alert_sent"`
	AlertWarning string  `json:"alert_warning,omitempty"`
}

// Service coordinates emergency request storage and broadcast.
type Service struct {
	repo        Repository
	alerter     Alerter
	countryCode string
	loc         *time.Location
	logger      *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLocation sets the zone that zone-less need_by values are read in. Default UTC.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// NewService creates a service. alerter may be nil, in which case no alert is sent.
func NewService(repo Repository, alerter Alerter, countryCode string, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{repo: repo, alerter: alerter, countryCode: countryCode, loc: time.UTC, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates and stores a request with status open, then broadcasts it. A failed
// broadcast does not undo the insert.
func (s *Service) Create(ctx context.Context, in CreateInput) (Created, error) {
	req, err := s.validate(in)
	if err != nil {
		return Created{}, err
	}
	saved, err := s.repo.Insert(ctx, req)
	if err != nil {
		return Created{}, apperr.Transport(err, "save emergency request")
	}

	out := Created{Request: saved}
	if s.alerter == nil {
		out.AlertWarning = "request saved; alerts are not configured"
		return out, nil
	}
	if err := s.alerter.Alert(ctx, saved); err != nil {
		s.logger.Warn("emergency alert failed",
			zap.String("request_id", saved.ID),
			zap.Error(err),
		)
		out.AlertWarning = "request saved but the alert could not be sent: " + err.Error()
		return out, nil
	}
	out.AlertSent = true
	return out, nil
}

func (s *Service) validate(in CreateInput) (Request, error) {
	if strings.TrimSpace(in.BloodGroup) == "" {
		return Request{}, apperr.Validation("blood group is required")
	}
	group, err := model.ParseBloodGroup(in.BloodGroup)
	if err != nil {
		return Request{}, err
	}
	units := in.UnitsNeeded
	if units == 0 {
		units = 1
	}
	if units < 1 {
		return Request{}, apperr.Validation("units needed must be at least 1")
	}

	req := Request{
		RequesterName: optional(in.RequesterName),
		BloodGroup:    group,
		UnitsNeeded:   units,
		Hospital:      optional(in.Hospital),
		Location:      optional(in.Location),
		Status:        model.StatusOpen,
	}
	if number := phone.Normalize(in.ContactPhone, s.countryCode); number != "" {
		req.ContactPhone = &number
	}
	if v := strings.TrimSpace(in.NeedBy); v != "" {
		t, err := s.parseNeedBy(v)
		if err != nil {
			return Request{}, err
		}
		req.NeedBy = &t
	}
	return req, nil
}

func (s *Service) parseNeedBy(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.ParseInLocation(localNeedBy, v, s.loc); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, apperr.Validation("need_by must be an RFC 3339 timestamp")
}

// ListOpen returns open requests, newest first.
func (s *Service) ListOpen(ctx context.Context) ([]Request, error) {
	reqs, err := s.repo.ListOpen(ctx)
	if err != nil {
		return nil, apperr.Transport(err, "list emergency requests")
	}
	if reqs == nil {
		reqs = []Request{}
	}
	return reqs, nil
}

// UpdateStatus moves a request to status. Callers re-fetch lists afterwards.
func (s *Service) UpdateStatus(ctx context.Context, id, status string) error {
	st, err := model.ParseStatus(status)
	if err != nil {
		return err
	}
	if _, err := uuid.Parse(id); err != nil {
		return apperr.NotFound("emergency request %q not found", id)
	}
	err = s.repo.UpdateStatus(ctx, id, st)
	switch {
	case errors.Is(err, ErrNoRows):
		return apperr.NotFound("emergency request %q not found", id)
	case err != nil:
		return apperr.Transport(err, "update emergency request")
	}
	return nil
}

// CountOpen returns the number of open requests.
func (s *Service) CountOpen(ctx context.Context) (int, error) {
	n, err := s.repo.CountOpen(ctx)
	if err != nil {
		return 0, apperr.Transport(err, "count emergency requests")
	}
	return n, nil
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
