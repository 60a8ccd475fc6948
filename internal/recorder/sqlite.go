package recorder

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"TrancheVault/internal/model"
)

var log = logrus.WithField("module", "recorder")

// SQLiteRecorder persists vault history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets the status API read while the vault writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.WithField("path", dbPath).Info("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS vault_events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id   TEXT NOT NULL UNIQUE,
			timestamp  INTEGER NOT NULL,
			name       TEXT NOT NULL,
			topic      TEXT NOT NULL,
			payload    TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_ts ON vault_events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_events_topic ON vault_events(topic)`,

		`CREATE TABLE IF NOT EXISTS pool_snapshots (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp     INTEGER NOT NULL,
			phase         TEXT,
			cycle         INTEGER,
			emergency     INTEGER,
			asset_a       TEXT,
			asset_a_bal   TEXT,
			asset_b       TEXT,
			asset_b_bal   TEXT,
			tvl           TEXT,
			total_issued  TEXT,
			senior_supply TEXT,
			junior_supply TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON pool_snapshots(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %.40q: %w", s, err)
		}
	}
	return nil
}

// Topic is the keccak256 hash of an event's signature, the same value an
// on-chain log would carry as its first topic.
func Topic(evt model.Event) string {
	return crypto.Keccak256Hash([]byte(evt.Signature())).Hex()
}

func (r *SQLiteRecorder) RecordEvent(evt model.Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode %s: %w", evt.Name(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err = r.db.Exec(`INSERT INTO vault_events
		(event_id, timestamp, name, topic, payload)
		VALUES (?,?,?,?,?)`,
		uuid.NewString(), evt.Timestamp().UnixNano(), evt.Name(), Topic(evt), string(payload),
	)
	return err
}

func (r *SQLiteRecorder) RecordSnapshot(st *model.VaultStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	emergency := 0
	if st.Emergency {
		emergency = 1
	}
	var a, b model.PoolBalance
	if len(st.Pools) == 2 {
		a, b = st.Pools[0], st.Pools[1]
	}
	_, err := r.db.Exec(`INSERT INTO pool_snapshots
		(timestamp, phase, cycle, emergency,
		 asset_a, asset_a_bal, asset_b, asset_b_bal,
		 tvl, total_issued, senior_supply, junior_supply)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		st.AsOf.Unix(), st.Phase.String(), st.Cycle, emergency,
		a.Asset.Hex(), a.Balance.String(), b.Asset.Hex(), b.Balance.String(),
		st.TotalValueLocked.String(), st.TotalIssued.String(),
		st.SeniorSupply.String(), st.JuniorSupply.String(),
	)
	return err
}

func (r *SQLiteRecorder) RecentEvents(limit int) ([]StoredEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, err := r.db.Query(`SELECT event_id, timestamp, name, topic, payload
		FROM vault_events ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var (
			e       StoredEvent
			ts      int64
			payload string
		)
		if err := rows.Scan(&e.ID, &ts, &e.Name, &e.Topic, &payload); err != nil {
			return nil, err
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		e.Payload = json.RawMessage(payload)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	log.Info("closing sqlite recorder")
	return r.db.Close()
}
