package response

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Archive stores finished response cycles. It is best effort: the procedure never waits on it.
type Archive interface {
	Save(ctx context.Context, inc Incident) error
}

type postgresArchive struct {
	db *sql.DB
}

func NewArchive(db *sql.DB) Archive {
	if db == nil {
		return noopArchive{}
	}
	return &postgresArchive{db: db}
}

func (a *postgresArchive) Save(ctx context.Context, inc Incident) error {
	patientJSON, err := json.Marshal(inc.Patient)
	if err != nil {
		return err
	}
	stepsJSON, err := json.Marshal(inc.Steps)
	if err != nil {
		return err
	}
	branchesJSON, err := json.Marshal(inc.Branches)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO incidents (id, session_id, patient, draft, steps, branches, progress, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	_, err = a.db.ExecContext(ctx, query,
		inc.ID, inc.SessionID, patientJSON, inc.Draft, stepsJSON, branchesJSON, inc.Progress, inc.StartedAt, inc.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to archive incident %s: %w", inc.ID, err)
	}
	return nil
}

type noopArchive struct{}

func (noopArchive) Save(context.Context, Incident) error { return nil }
