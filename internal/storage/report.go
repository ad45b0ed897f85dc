package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/norfrt6-lab/voice-agent-orchestrator/internal/domain"
)

// ReportRepo persists evaluation reports.
type ReportRepo struct {
	db *PostgresDB
}

func NewReportRepo(db *PostgresDB) *ReportRepo {
	return &ReportRepo{db: db}
}

func (r *ReportRepo) Create(ctx context.Context, report *domain.Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	_, err = r.db.Pool.Exec(ctx, `
		INSERT INTO reports (id, analyzed, body, generated_at)
		VALUES ($1, $2, $3, $4)
	`, report.ID, report.Analyzed, body, report.GeneratedAt)

	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}

	return nil
}

func (r *ReportRepo) GetByID(ctx context.Context, id string) (*domain.Report, error) {
	var body []byte

	err := r.db.Pool.QueryRow(ctx, `
		SELECT body FROM reports WHERE id = $1
	`, id).Scan(&body)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query: %w", err)
	}

	var report domain.Report
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &report, nil
}

func (r *ReportRepo) Latest(ctx context.Context) (*domain.Report, error) {
	var body []byte

	err := r.db.Pool.QueryRow(ctx, `
		SELECT body FROM reports ORDER BY generated_at DESC LIMIT 1
	`).Scan(&body)

	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("query: %w", err)
	}

	var report domain.Report
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &report, nil
}

func (r *ReportRepo) List(ctx context.Context, limit int) ([]*domain.Report, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT body FROM reports ORDER BY generated_at DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var out []*domain.Report
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		var report domain.Report
		if err := json.Unmarshal(body, &report); err != nil {
			return nil, fmt.Errorf("unmarshal report: %w", err)
		}
		out = append(out, &report)
	}

	return out, rows.Err()
}
