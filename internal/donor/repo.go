package donor

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"bloodfinder/internal/model"
)

const donorColumns = `id, full_name, role, branch, class_year, blood_group, phone_e164, availability, created_at`

// PostgresRepository persists donors in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a repo.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Insert writes a new donor and returns it with id and creation time filled in.
func (r *PostgresRepository) Insert(ctx context.Context, d Donor) (Donor, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO donors (id, full_name, role, branch, class_year, blood_group, phone_e164, availability)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at
	`, d.ID, d.FullName, string(d.Role), d.Branch, d.ClassYear, string(d.BloodGroup), d.PhoneE164, d.Availability)
	if err := row.Scan(&d.CreatedAt); err != nil {
		return Donor{}, err
	}
	return d, nil
}

// List returns one page of donors matching f plus the total number of matches.
func (r *PostgresRepository) List(ctx context.Context, f Filter) ([]Donor, int, error) {
	f = f.normalized()
	where, args := filterClauses(f)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM donors`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + donorColumns + ` FROM donors` + where +
		` ORDER BY created_at, id LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, f.Limit, f.Offset())

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	donors, err := scanDonors(rows)
	if err != nil {
		return nil, 0, err
	}
	return donors, total, nil
}

// All returns every donor, oldest first.
func (r *PostgresRepository) All(ctx context.Context) ([]Donor, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+donorColumns+` FROM donors ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanDonors(rows)
}

// Count returns the number of donors, optionally only those available.
func (r *PostgresRepository) Count(ctx context.Context, availableOnly bool) (int, error) {
	query := `SELECT count(*) FROM donors`
	if availableOnly {
		query += ` WHERE availability = TRUE`
	}
	var n int
	err := r.db.QueryRowContext(ctx, query).Scan(&n)
	return n, err
}

// Branches returns distinct branch names starting with prefix, case-insensitively.
func (r *PostgresRepository) Branches(ctx context.Context, prefix string, limit int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT branch FROM donors
		WHERE branch ILIKE $1 AND branch <> ''
		ORDER BY branch
		LIMIT $2
	`, likePrefix(prefix), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var b string
		if err := rows.Scan(&b); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func filterClauses(f Filter) (string, []any) {
	var clauses []string
	var args []any
	if f.AvailableOnly {
		clauses = append(clauses, "availability = TRUE")
	}
	if f.BloodGroup != "" {
		args = append(args, string(f.BloodGroup))
		clauses = append(clauses, "blood_group = $"+strconv.Itoa(len(args)))
	}
	if f.Branch != "" {
		args = append(args, likePrefix(f.Branch))
		clauses = append(clauses, "branch ILIKE $"+strconv.Itoa(len(args)))
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePrefix turns user text into an ILIKE prefix pattern with wildcards escaped.
func likePrefix(s string) string {
	return likeEscaper.Replace(s) + "%"
}

func scanDonors(rows *sql.Rows) ([]Donor, error) {
	var res []Donor
	for rows.Next() {
		var d Donor
		var role, group string
		var created time.Time
		if err := rows.Scan(&d.ID, &d.FullName, &role, &d.Branch, &d.ClassYear, &group, &d.PhoneE164, &d.Availability, &created); err != nil {
			return nil, err
		}
		d.Role = model.Role(role)
		d.BloodGroup = model.BloodGroup(group)
		d.CreatedAt = created
		res = append(res, d)
	}
	return res, rows.Err()
}
