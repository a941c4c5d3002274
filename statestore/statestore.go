/*
Package statestore persists swap histories in sqlite.

Every save appends the pending events of one swap and refreshes the swap
projection in a single transaction. Appends are checked twice: the stored
version must be the one the swap was loaded at, and the full history with
the new events appended must replay through the state machine.
*/
package statestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/swap-go/database"
	"github.com/TEENet-io/swap-go/swap"
)

var ErrInvalidHistory = errors.New("appended events do not follow the stored history")

const (
	queryVersion     = `SELECT version FROM swap WHERE id = ?`
	queryEvents      = `SELECT type, payload FROM swap_event WHERE swap_id = ? ORDER BY version`
	queryRecords     = `SELECT version, type, payload, created_at FROM swap_event WHERE swap_id = ? ORDER BY version`
	queryInsertEvent = `INSERT INTO swap_event (swap_id, version, type, payload, created_at) VALUES (?, ?, ?, ?, ?)`
	queryUpsertSwap  = `INSERT INTO swap (` + swapColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET phase = excluded.phase, status = excluded.status,
		alpha_state = excluded.alpha_state, beta_state = excluded.beta_state,
		version = excluded.version, updated_at = excluded.updated_at`
	querySummary     = `SELECT` + swapColumns + `FROM swap WHERE id = ?`
	queryList        = `SELECT` + swapColumns + `FROM swap ORDER BY created_at, id`
	queryListActive  = `SELECT id FROM swap WHERE status = 'in_progress' ORDER BY created_at, id`
)

type Summary struct {
	ID          uuid.UUID   `json:"id"`
	Role        swap.Role   `json:"role"`
	Peer        string      `json:"counterparty"`
	Phase       swap.Phase  `json:"phase"`
	Status      swap.Status `json:"status"`
	AlphaLedger string      `json:"alpha_ledger"`
	BetaLedger  string      `json:"beta_ledger"`
	AlphaState  string      `json:"alpha_state,omitempty"`
	BetaState   string      `json:"beta_state,omitempty"`
	Version     int         `json:"version"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Record is one stored event.
type Record struct {
	Version   int            `json:"version"`
	Type      swap.EventType `json:"type"`
	Payload   []byte         `json:"-"`
	CreatedAt time.Time      `json:"created_at"`
}

type StateStore struct {
	db        *sql.DB
	stmtCache *database.StmtCache
	locks     *database.KeyedMutex
	now       func() time.Time
}

func New(db *sql.DB) (*StateStore, error) {
	if _, err := db.Exec(swapTable + swapEventTable); err != nil {
		return nil, err
	}

	st := &StateStore{
		db:        db,
		stmtCache: database.NewStmtCache(db),
		locks:     database.NewKeyedMutex(),
		now:       time.Now,
	}
	// prepared up front: a transaction may hold the only connection
	for _, q := range []string{queryVersion, queryEvents, queryRecords, queryInsertEvent,
		queryUpsertSwap, querySummary, queryList, queryListActive} {
		if _, err := st.stmtCache.Prepare(q); err != nil {
			return nil, fmt.Errorf("failed to prepare %q: %w", q, err)
		}
	}
	return st, nil
}

func (st *StateStore) Close() {
	st.stmtCache.Clear()
}

// Save appends the pending changes of s and clears them.
func (st *StateStore) Save(ctx context.Context, s *swap.Swap) error {
	changes := s.Changes()
	if len(changes) == 0 {
		return nil
	}
	unlock := st.locks.Lock(s.ID.String())
	defer unlock()

	base := s.Version() - len(changes)
	tx, err := st.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // nolint: errcheck

	var stored int
	err = tx.StmtContext(ctx, st.stmtCache.MustPrepare(queryVersion)).QueryRowContext(ctx, s.ID.String()).Scan(&stored)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if stored != base {
		return fmt.Errorf("%w: swap %s stored at %d, appending at %d", swap.ErrVersionConflict, s.ID, stored, base)
	}

	history, err := st.events(ctx, tx, s.ID)
	if err != nil {
		return err
	}
	if _, err := swap.NewFromEvents(append(history, changes...)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidHistory, err)
	}

	now := st.now().Unix()
	if err := st.upsert(ctx, tx, s, now); err != nil {
		return err
	}
	insert := tx.StmtContext(ctx, st.stmtCache.MustPrepare(queryInsertEvent))
	for i, ev := range changes {
		payload, err := swap.MarshalEvent(ev)
		if err != nil {
			return err
		}
		if _, err := insert.ExecContext(ctx, s.ID.String(), base+i+1, string(ev.Type()), payload, now); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	logger.WithFields(logger.Fields{
		"swap":    s.ID,
		"version": s.Version(),
		"events":  len(changes),
	}).Debug("swap saved")
	s.ClearChanges()
	return nil
}

func (st *StateStore) upsert(ctx context.Context, tx *sql.Tx, s *swap.Swap, now int64) error {
	var alphaState, betaState sql.NullString
	if s.Alpha != nil {
		alphaState = sql.NullString{String: string(s.Alpha.State), Valid: true}
		betaState = sql.NullString{String: string(s.Beta.State), Valid: true}
	}
	_, err := tx.StmtContext(ctx, st.stmtCache.MustPrepare(queryUpsertSwap)).ExecContext(ctx,
		s.ID.String(), string(s.Role), s.Peer, string(s.Phase), string(s.Status()),
		s.Request.Alpha.Ledger.String(), s.Request.Beta.Ledger.String(),
		alphaState, betaState, s.Version(), now, now,
	)
	return err
}

func (st *StateStore) events(ctx context.Context, tx *sql.Tx, id uuid.UUID) ([]swap.Event, error) {
	rows, err := tx.StmtContext(ctx, st.stmtCache.MustPrepare(queryEvents)).QueryContext(ctx, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []swap.Event
	for rows.Next() {
		var (
			typ     string
			payload []byte
		)
		if err := rows.Scan(&typ, &payload); err != nil {
			return nil, err
		}
		ev, err := swap.UnmarshalEvent(swap.EventType(typ), payload)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Load rebuilds a swap from its stored history.
func (st *StateStore) Load(ctx context.Context, id uuid.UUID) (*swap.Swap, error) {
	tx, err := st.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback() // nolint: errcheck

	events, err := st.events(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, swap.ErrSwapNotFound
	}
	return swap.NewFromEvents(events)
}

func (st *StateStore) Records(ctx context.Context, id uuid.UUID) ([]Record, error) {
	rows, err := st.stmtCache.MustPrepare(queryRecords).QueryContext(ctx, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r       Record
			typ     string
			created int64
		)
		if err := rows.Scan(&r.Version, &typ, &r.Payload, &created); err != nil {
			return nil, err
		}
		r.Type = swap.EventType(typ)
		r.CreatedAt = time.Unix(created, 0)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, swap.ErrSwapNotFound
	}
	return out, nil
}

func (st *StateStore) Summary(ctx context.Context, id uuid.UUID) (*Summary, error) {
	row := st.stmtCache.MustPrepare(querySummary).QueryRowContext(ctx, id.String())
	s, err := scanSummary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, swap.ErrSwapNotFound
	}
	return s, err
}

func (st *StateStore) List(ctx context.Context) ([]*Summary, error) {
	rows, err := st.stmtCache.MustPrepare(queryList).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*Summary{}
	for rows.Next() {
		s, err := scanSummary(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListActive returns the ids of accepted swaps that are not final yet.
func (st *StateStore) ListActive(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := st.stmtCache.MustPrepare(queryListActive).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner) (*Summary, error) {
	var (
		s                     Summary
		id, role, phase, stat string
		alphaState, betaState sql.NullString
		created, updated      int64
	)
	if err := row.Scan(&id, &role, &s.Peer, &phase, &stat, &s.AlphaLedger, &s.BetaLedger,
		&alphaState, &betaState, &s.Version, &created, &updated); err != nil {
		return nil, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	s.ID = parsed
	s.Role = swap.Role(role)
	s.Phase = swap.Phase(phase)
	s.Status = swap.Status(stat)
	s.AlphaState = alphaState.String
	s.BetaState = betaState.String
	s.CreatedAt = time.Unix(created, 0)
	s.UpdatedAt = time.Unix(updated, 0)
	return &s, nil
}
