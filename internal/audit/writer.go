package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Outcome values for audit entries.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Writer appends audit entries inside the caller's transaction so the
// entry commits or rolls back with the mutation it records.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

type Metadata map[string]any

// Entry is one action to record.
type Entry struct {
	ActorID      string
	Role         string
	Action       string
	Outcome      string
	ResourceKind string
	ResourceID   string
	SourceIP     string
	Description  string
	Metadata     Metadata
}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, e Entry) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if e.Outcome == "" {
		e.Outcome = OutcomeSuccess
	}
	if e.Metadata == nil {
		e.Metadata = Metadata{}
	}
	data, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO audit_log(ts,actor_id,role,action,outcome,resource_kind,resource_id,source_ip,description,metadata_json) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		ts, e.ActorID, nullable(e.Role), e.Action, e.Outcome, nullable(e.ResourceKind), nullable(e.ResourceID), nullable(e.SourceIP), nullable(e.Description), string(data))
	return err
}

// AppendStandalone records an entry outside any caller transaction.
// Used for failed attempts, which must persist even though the mutation
// they describe rolled back.
func (w Writer) AppendStandalone(ctx context.Context, e Entry) error {
	tx, err := w.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := w.Append(ctx, tx, e); err != nil {
		return err
	}
	return tx.Commit()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
