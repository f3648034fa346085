package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-kopi/internal/db"
)

const auditColumns = `id, actor_kind, actor_user_id, actor_roles, action, resource_type, resource_id, method, path, route, status, ip, user_agent, request_id, metadata, created_at`

// PGStore persists audit logs in Postgres.
type PGStore struct {
	DB db.DBTX
}

// NewStore constructs an audit store.
func NewStore(conn db.DBTX) *PGStore {
	return &PGStore{DB: conn}
}

// InsertAuditLog writes one entry.
func (s *PGStore) InsertAuditLog(ctx context.Context, e Entry) error {
	_, err := s.DB.Exec(ctx, `
INSERT INTO audit_logs (id, actor_kind, actor_user_id, actor_roles, action, resource_type, resource_id, method, path, route, status, ip, user_agent, request_id, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		e.ID, e.ActorKind, e.ActorUserID, e.ActorRoles, e.Action, e.ResourceType, e.ResourceID,
		e.Method, e.Path, e.Route, e.Status, e.IP, e.UserAgent, e.RequestID, []byte(e.Metadata))
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// ListAuditLogs returns a page of entries, newest first.
func (s *PGStore) ListAuditLogs(ctx context.Context, f Filter, limit, offset int) ([]Entry, error) {
	rows, err := s.DB.Query(ctx, `SELECT `+auditColumns+` FROM audit_logs
WHERE ($1 = '' OR resource_type = $1) AND ($2 = '' OR resource_id = $2)
ORDER BY created_at DESC LIMIT $3 OFFSET $4`, f.ResourceType, f.ResourceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()
	out := make([]Entry, 0, limit)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		e        Entry
		metadata []byte
	)
	err := row.Scan(&e.ID, &e.ActorKind, &e.ActorUserID, &e.ActorRoles, &e.Action, &e.ResourceType, &e.ResourceID,
		&e.Method, &e.Path, &e.Route, &e.Status, &e.IP, &e.UserAgent, &e.RequestID, &metadata, &e.CreatedAt)
	if len(metadata) > 0 {
		e.Metadata = metadata
	}
	return e, err
}
