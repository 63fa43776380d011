package emergency

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"bloodfinder/internal/model"
)

// ErrNoRows is returned by repositories when an update matched nothing.
var ErrNoRows = errors.New("no matching emergency request")

const requestColumns = `id, requester_name, blood_group, units_needed, hospital, location, contact_phone, need_by, status, created_at`

// PostgresRepository persists emergency requests in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert writes a new request.
func (r *PostgresRepository) Insert(ctx context.Context, req Request) (Request, error) {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = model.StatusOpen
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO emergency_requests (id, requester_name, blood_group, units_needed, hospital, location, contact_phone, need_by, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at
	`, req.ID, req.RequesterName, string(req.BloodGroup), req.UnitsNeeded, req.Hospital, req.Location, req.ContactPhone, req.NeedBy, string(req.Status))
	if err := row.Scan(&req.CreatedAt); err != nil {
		return Request{}, err
	}
	return req, nil
}

// ListOpen returns open requests, newest first.
func (r *PostgresRepository) ListOpen(ctx context.Context) ([]Request, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+requestColumns+`
		FROM emergency_requests
		WHERE status = $1
		ORDER BY created_at DESC
	`, string(model.StatusOpen))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Request
	for rows.Next() {
		var req Request
		var group, status string
		if err := rows.Scan(&req.ID, &req.RequesterName, &group, &req.UnitsNeeded, &req.Hospital, &req.Location,
			&req.ContactPhone, &req.NeedBy, &status, &req.CreatedAt); err != nil {
			return nil, err
		}
		req.BloodGroup = model.BloodGroup(group)
		req.Status = model.Status(status)
		res = append(res, req)
	}
	return res, rows.Err()
}

// UpdateStatus sets the status of one request.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, status model.Status) error {
	res, err := r.db.ExecContext(ctx, `UPDATE emergency_requests SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoRows
	}
	return nil
}

// CountOpen returns the number of open requests.
func (r *PostgresRepository) CountOpen(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM emergency_requests WHERE status = $1`, string(model.StatusOpen)).Scan(&n)
	return n, err
}
