package agreement

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"consentdesk/pkg/domain"
	"consentdesk/pkg/platform/sentinel"
)

// PostgresStore persists agreements in PostgreSQL. Purposes are stored as a
// JSONB document since the purpose sequence is read and written as a unit.
// Schema: migrations/001_init.sql.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed agreement store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, a Agreement) error {
	purposes, err := json.Marshal(a.Purposes)
	if err != nil {
		return fmt.Errorf("marshal purposes: %w", err)
	}
	query := `
		INSERT INTO agreements (id, title, name, version, agreement_text, purposes, created_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			name = EXCLUDED.name,
			version = EXCLUDED.version,
			agreement_text = EXCLUDED.agreement_text,
			purposes = EXCLUDED.purposes,
			status = EXCLUDED.status
	`
	_, err = s.db.ExecContext(ctx, query,
		a.ID.String(), a.Title, a.Name, a.Version, a.Text, purposes, a.CreatedDate, string(a.Status))
	if err != nil {
		return fmt.Errorf("save agreement: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.AgreementID) (Agreement, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, name, version, agreement_text, purposes, created_date, status
		FROM agreements WHERE id = $1
	`, id.String())
	a, err := scanAgreement(row)
	if err == sql.ErrNoRows {
		return Agreement{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Agreement{}, fmt.Errorf("find agreement: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]Agreement, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, name, version, agreement_text, purposes, created_date, status
		FROM agreements ORDER BY created_date, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list agreements: %w", err)
	}
	defer rows.Close()

	var out []Agreement
	for rows.Next() {
		a, err := scanAgreement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agreement: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list agreements: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgreement(row rowScanner) (Agreement, error) {
	var (
		a        Agreement
		rawID    string
		purposes []byte
		status   string
	)
	if err := row.Scan(&rawID, &a.Title, &a.Name, &a.Version, &a.Text, &purposes, &a.CreatedDate, &status); err != nil {
		return Agreement{}, err
	}
	id, err := domain.ParseAgreementID(rawID)
	if err != nil {
		return Agreement{}, err
	}
	a.ID = id
	a.Status = Status(status)
	if err := json.Unmarshal(purposes, &a.Purposes); err != nil {
		return Agreement{}, err
	}
	return a, nil
}
