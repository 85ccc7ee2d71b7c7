package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/velonet/lead-intake-api/internal/domain"
)

// supabaseImportLog maps the import_logs table.
type supabaseImportLog struct {
	ID        string `json:"id,omitempty"`
	UserID    string `json:"user_id"`
	Rows      int    `json:"rows"`
	Accepted  int    `json:"accepted"`
	Rejected  int    `json:"rejected"`
	CreatedAt string `json:"created_at,omitempty"`
}

func (r supabaseImportLog) toDomain() domain.ImportLog {
	created, _ := time.Parse(time.RFC3339, r.CreatedAt)
	return domain.ImportLog{
		ID:        r.ID,
		UserID:    r.UserID,
		Rows:      r.Rows,
		Accepted:  r.Accepted,
		Rejected:  r.Rejected,
		CreatedAt: created,
	}
}

// CreateImportLog records one bulk viability import.
func (c *Client) CreateImportLog(ctx context.Context, log *domain.ImportLog) (*domain.ImportLog, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateImportLog")
	defer span.End()

	row := supabaseImportLog{
		UserID:   log.UserID,
		Rows:     log.Rows,
		Accepted: log.Accepted,
		Rejected: log.Rejected,
	}

	var created *domain.ImportLog

	err := c.execute(ctx, func() error {
		body, err := c.doPost(ctx, "import_logs", row)
		if err != nil {
			return err
		}

		var rows []supabaseImportLog
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode import log: %w", err)
		}
		if len(rows) == 0 {
			return fmt.Errorf("supabase returned no import_logs row")
		}

		l := rows[0].toDomain()
		created = &l
		return nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/import_logs", Err: err}
	}

	return created, nil
}

// ListImportLogs pages through past imports, newest first.
func (c *Client) ListImportLogs(ctx context.Context, page, pageSize int) ([]domain.ImportLog, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListImportLogs")
	defer span.End()

	path := rangePath("import_logs?order=created_at.desc", page, pageSize)

	var logs []domain.ImportLog

	err := c.execute(ctx, func() error {
		body, err := c.doGet(ctx, path)
		if err != nil {
			return err
		}
		if emptyBody(body) {
			logs = []domain.ImportLog{}
			return nil
		}

		var rows []supabaseImportLog
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("failed to decode import logs: %w", err)
		}

		logs = make([]domain.ImportLog, 0, len(rows))
		for _, r := range rows {
			logs = append(logs, r.toDomain())
		}
		return nil
	})

	if err != nil {
		return nil, &domain.ErrExternalService{Service: "supabase/import_logs", Err: err}
	}

	return logs, nil
}
