package db

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Queries wraps database queries
type Queries struct {
	*pgxpool.Pool
}

// NewQueries creates a new Queries instance
func NewQueries(pool *pgxpool.Pool) *Queries {
	return &Queries{Pool: pool}
}

// Submission is one audited submit attempt
type Submission struct {
	ID         string
	SessionID  string
	RecordKind string
	RecordID   string
	Status     string
	Answered   int
	Negative   int
	Complaints int
	Error      *string
	Payload    map[string]interface{}
	OperatorID *string
	CreatedAt  time.Time
}

type InsertSubmissionParams struct {
	ID         string
	SessionID  string
	RecordKind string
	RecordID   string
	Status     string
	Answered   int
	Negative   int
	Complaints int
	Error      *string
	Payload    map[string]interface{}
	OperatorID *string
}

const submissionColumns = `id, session_id, record_kind, record_id, status,
	answered, negative, complaints, error, payload, operator_id, created_at`

func (q *Queries) InsertSubmission(ctx context.Context, p InsertSubmissionParams) (Submission, error) {
	payload := p.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	var s Submission
	err := scanSubmission(q.Pool.QueryRow(ctx,
		`INSERT INTO submissions (
			id, session_id, record_kind, record_id, status,
			answered, negative, complaints, error, payload, operator_id
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING `+submissionColumns,
		p.ID, p.SessionID, p.RecordKind, p.RecordID, p.Status,
		p.Answered, p.Negative, p.Complaints, p.Error, payload, p.OperatorID,
	), &s)
	return s, err
}

// ListSubmissionsParams filters the history. Empty fields match everything.
type ListSubmissionsParams struct {
	RecordKind string
	RecordID   string
	Limit      int
	Offset     int
}

func (q *Queries) ListSubmissions(ctx context.Context, p ListSubmissionsParams) ([]Submission, error) {
	if p.Limit <= 0 {
		p.Limit = 50
	}
	rows, err := q.Pool.Query(ctx,
		`SELECT `+submissionColumns+`
		FROM submissions
		WHERE ($1 = '' OR record_kind = $1) AND ($2 = '' OR record_id = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3 OFFSET $4`,
		p.RecordKind, p.RecordID, p.Limit, p.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Submission
	for rows.Next() {
		var s Submission
		if err := scanSubmission(rows, &s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (q *Queries) GetSubmissionByID(ctx context.Context, id string) (Submission, error) {
	var s Submission
	err := scanSubmission(q.Pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id,
	), &s)
	return s, err
}

func scanSubmission(row pgx.Row, s *Submission) error {
	return row.Scan(
		&s.ID, &s.SessionID, &s.RecordKind, &s.RecordID, &s.Status,
		&s.Answered, &s.Negative, &s.Complaints, &s.Error, &s.Payload, &s.OperatorID, &s.CreatedAt,
	)
}
