package indexdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"buildnblocks.io/internal/sim/world"
)

// SQLiteIndex is a queryable read model of the audit stream. The journal
// stays the source of truth; entries are dropped when the writer falls behind.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropAudit  atomic.Uint64
	writeFail  atomic.Uint64
	auditTotal atomic.Uint64
}

type req struct {
	audit world.AuditEntry
}

type Stats struct {
	AuditTotal     uint64
	DropAuditTotal uint64
	WriteFailTotal uint64
	QueueDepth     int
	QueueCapacity  int
}

type AuditRow struct {
	ID     int64
	Seq    uint64
	TimeMs int64
	Actor  string
	Action string
	Pos    [3]int
	Color  uint32
	Name   string
	Reason string
	Voxels int
}

type ActorCount struct {
	Actor   string
	Builds  int
	Removes int
	Total   int
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		// Build storms from many clients must not stall the world loop.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

// OpenSQLiteReadOnly opens an existing index for queries without starting a writer.
func OpenSQLiteReadOnly(path string) (*SQLiteIndex, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &SQLiteIndex{db: db}
	s.closed.Store(true)
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS audits (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			seq INTEGER NOT NULL,
			ts_ms INTEGER NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			color INTEGER NOT NULL,
			name TEXT,
			reason TEXT,
			voxels INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_actor ON audits(actor, id);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_pos ON audits(x, z, y, id);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_action ON audits(action, id);`,
		`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1');`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		if s.ch != nil && !s.closed.Load() {
			s.closed.Store(true)
			close(s.ch)
			s.wg.Wait()
		}
		if s.db != nil {
			err = s.db.Close()
		}
	})
	return err
}

// WriteAudit never blocks; a full queue counts a drop.
func (s *SQLiteIndex) WriteAudit(entry world.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{audit: entry}:
	default:
		s.dropAudit.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		AuditTotal:     s.auditTotal.Load(),
		DropAuditTotal: s.dropAudit.Load(),
		WriteFailTotal: s.writeFail.Load(),
		QueueDepth:     len(s.ch),
		QueueCapacity:  cap(s.ch),
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertAudit, _ := s.db.Prepare(`INSERT INTO audits(seq,ts_ms,actor,action,x,y,z,color,name,reason,voxels,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertAudit != nil {
			_ = insertAudit.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		if err := tx.Commit(); err != nil {
			s.writeFail.Add(uint64(opCount))
		}
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		s.writeFail.Add(uint64(opCount) + 1)
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	ticker := time.NewTicker(commitMaxWait)
	defer ticker.Stop()

	for {
		select {
		case r, ok := <-s.ch:
			if !ok {
				commit()
				return
			}
			begin()
			if tx == nil || insertAudit == nil {
				s.writeFail.Add(1)
				continue
			}
			a := r.audit
			raw, _ := json.Marshal(a)
			if _, err := tx.Stmt(insertAudit).Exec(
				int64(a.Seq),
				a.TimeMs,
				a.Actor,
				a.Action,
				a.Pos[0], a.Pos[1], a.Pos[2],
				int64(a.Color),
				a.Name,
				a.Reason,
				len(a.Voxels),
				string(raw),
			); err != nil {
				rollback()
				continue
			}
			opCount++
			s.auditTotal.Add(1)
			if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
		case <-ticker.C:
			// Idle streams still become visible to readers.
			if tx != nil && time.Since(lastCommit) >= commitMaxWait {
				commit()
			}
		}
	}
}

// RecentAudits returns the newest entries first, optionally for one actor.
func (s *SQLiteIndex) RecentAudits(ctx context.Context, actor string, limit int) ([]AuditRow, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT id,seq,ts_ms,actor,action,x,y,z,color,COALESCE(name,''),COALESCE(reason,''),voxels FROM audits`
	args := []any{}
	if actor != "" {
		q += ` WHERE actor = ?`
		args = append(args, actor)
	}
	q += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditRow
	for rows.Next() {
		var r AuditRow
		var seq, color int64
		if err := rows.Scan(&r.ID, &seq, &r.TimeMs, &r.Actor, &r.Action, &r.Pos[0], &r.Pos[1], &r.Pos[2], &color, &r.Name, &r.Reason, &r.Voxels); err != nil {
			return nil, err
		}
		r.Seq = uint64(seq)
		r.Color = uint32(color)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ActorCounts aggregates mutations per actor, busiest first.
func (s *SQLiteIndex) ActorCounts(ctx context.Context) ([]ActorCount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT actor,
			SUM(CASE WHEN action = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN action = ? THEN 1 ELSE 0 END),
			COUNT(*)
		FROM audits
		GROUP BY actor
		ORDER BY COUNT(*) DESC, actor ASC`, world.AuditBuild, world.AuditRemove)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ActorCount
	for rows.Next() {
		var c ActorCount
		if err := rows.Scan(&c.Actor, &c.Builds, &c.Removes, &c.Total); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
