// Package audit appends an operator-facing trail of mutations and
// flags suspicious ones, like a completed task reverting to todo.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"taskdesk/internal/domain"
)

type Writer struct {
	DB  *sql.DB
	Log zerolog.Logger
	Now func() time.Time
}

type Payload map[string]any

func (w Writer) now() time.Time {
	if w.Now != nil {
		return w.Now()
	}
	return time.Now()
}

// Append records an audit event. When tx is nil the write goes straight
// to the DB.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID, actorID string, payload Payload) error {
	ts := w.now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}
	const q = `INSERT INTO audit_events(ts,type,entity_kind,entity_id,actor_id,payload_json) VALUES (?,?,?,?,?,?)`
	if tx != nil {
		_, err = tx.ExecContext(ctx, q, ts, evtType, entityKind, nullable(entityID), actorID, string(data))
	} else {
		_, err = w.DB.ExecContext(ctx, q, ts, evtType, entityKind, nullable(entityID), actorID, string(data))
	}
	return err
}

// RecordStatusTransition writes the status change to the trail and
// flags non-monotonic transitions (completed reverting to todo and the
// like) at warn level. The transition itself is never blocked; the
// permissive status field matches observed behavior, the flag surfaces
// it as a candidate defect.
func (w Writer) RecordStatusTransition(ctx context.Context, tx *sql.Tx, taskID, actorID, from, to string) error {
	evtType := "task.status.changed"
	fromRank, okFrom := domain.TaskStatusRank[from]
	toRank, okTo := domain.TaskStatusRank[to]
	if okFrom && okTo && toRank < fromRank {
		evtType = "task.status.nonmonotonic"
		w.Log.Warn().
			Str("task_id", taskID).
			Str("actor_id", actorID).
			Str("from", from).
			Str("to", to).
			Msg("non-monotonic task status transition")
	}
	return w.Append(ctx, tx, evtType, "task", taskID, actorID, Payload{"from": from, "to": to})
}

// Latest returns the newest events, newest first.
func (w Writer) Latest(ctx context.Context, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := w.DB.QueryContext(ctx, `SELECT id,ts,type,entity_kind,COALESCE(entity_id,''),actor_id,payload_json FROM audit_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.AuditEvent
	for rows.Next() {
		var e domain.AuditEvent
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.EntityKind, &e.EntityID, &e.ActorID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
