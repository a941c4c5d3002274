/*
Package trade keeps the business log of every swap: offer, order, take,
deployment and completion. Each event type has exactly one predecessor and
the log refuses anything appended out of that order.
*/
package trade

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	logger "github.com/sirupsen/logrus"

	"github.com/TEENet-io/swap-go/database"
)

var (
	ErrUnexpectedPredecessor = errors.New("trade event does not follow its predecessor")
	ErrUnknownEvent          = errors.New("unknown trade event")
	ErrNotFound              = errors.New("no trade events for swap")
)

func ErrOutOfOrder(typ, want, got EventType) error {
	if got == "" {
		got = "nothing"
	}
	if want == "" {
		want = "nothing"
	}
	return fmt.Errorf("%w: %s must follow %s, log ends with %s", ErrUnexpectedPredecessor, typ, want, got)
}

var tradeEventTable = `CREATE TABLE IF NOT EXISTS trade_event (
	uid CHAR(36) NOT NULL,
	seq INTEGER NOT NULL,
	type VARCHAR(20) NOT NULL,
	payload BLOB NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (uid, seq),
	CONSTRAINT chk_type CHECK (type IN ('offer_created', 'order_created', 'order_taken', 'contract_deployed', 'swap_completed')),
	CONSTRAINT chk_seq CHECK (seq > 0)
);`

const (
	queryLast   = `SELECT seq, type FROM trade_event WHERE uid = ? ORDER BY seq DESC LIMIT 1`
	queryInsert = `INSERT INTO trade_event (uid, seq, type, payload, created_at) VALUES (?, ?, ?, ?, ?)`
	queryAll    = `SELECT type, payload FROM trade_event WHERE uid = ? ORDER BY seq`
)

type Log struct {
	db        *sql.DB
	stmtCache *database.StmtCache
	locks     *database.KeyedMutex
}

func NewLog(db *sql.DB) (*Log, error) {
	if _, err := db.Exec(tradeEventTable); err != nil {
		return nil, err
	}
	l := &Log{
		db:        db,
		stmtCache: database.NewStmtCache(db),
		locks:     database.NewKeyedMutex(),
	}
	for _, q := range []string{queryLast, queryInsert, queryAll} {
		if _, err := l.stmtCache.Prepare(q); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *Log) Close() {
	l.stmtCache.Clear()
}

// Append stores ev if it directly follows the last event of its swap.
func (l *Log) Append(ctx context.Context, ev Event) error {
	want, ok := Predecessor(ev.Type())
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type())
	}
	uid := ev.SwapID().String()
	unlock := l.locks.Lock(uid)
	defer unlock()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // nolint: errcheck

	var (
		seq  int
		last string
	)
	err = tx.StmtContext(ctx, l.stmtCache.MustPrepare(queryLast)).QueryRowContext(ctx, uid).Scan(&seq, &last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	if EventType(last) != want {
		return ErrOutOfOrder(ev.Type(), want, EventType(last))
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := tx.StmtContext(ctx, l.stmtCache.MustPrepare(queryInsert)).ExecContext(ctx,
		uid, seq+1, string(ev.Type()), payload, time.Now().Unix()); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	logger.WithFields(logger.Fields{"swap": uid, "event": ev.Type()}).Debug("trade event recorded")
	return nil
}

func (l *Log) Events(ctx context.Context, uid uuid.UUID) ([]Event, error) {
	rows, err := l.stmtCache.MustPrepare(queryAll).QueryContext(ctx, uid.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			typ     string
			payload []byte
		)
		if err := rows.Scan(&typ, &payload); err != nil {
			return nil, err
		}
		ev, err := decode(EventType(typ), payload)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNotFound
	}
	return events, nil
}

// Last is the most recent event of the swap.
func (l *Log) Last(ctx context.Context, uid uuid.UUID) (Event, error) {
	events, err := l.Events(ctx, uid)
	if err != nil {
		return nil, err
	}
	return events[len(events)-1], nil
}
