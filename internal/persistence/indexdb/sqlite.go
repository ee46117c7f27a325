// Package indexdb keeps a queryable sqlite read-model next to the
// authoritative snapshot files: the audit trail and snapshot metadata,
// written by a single background goroutine so the service never blocks
// on disk.
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

	"basekeeper.gg/internal/land"
	"basekeeper.gg/internal/persistence/snapshot"
)

type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqAudit reqKind = iota + 1
	reqSnapshot
)

type req struct {
	kind reqKind

	audit    land.AuditEntry
	snapshot snapshotRow
}

type snapshotRow struct {
	Clock   uint64
	Path    string
	SavedAt string
	Players int
	Claims  int
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
		// Sized for bursty audit writes (bulk admin sweeps) without
		// stalling the claim service.
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	// NORMAL is a decent durability/perf tradeoff for a secondary index.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
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
			version INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			time TEXT NOT NULL,
			actor TEXT NOT NULL,
			op TEXT NOT NULL,
			owner TEXT,
			claim_id TEXT,
			dim TEXT,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			detail TEXT,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (version, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_actor ON audits(actor, version);`,
		`CREATE INDEX IF NOT EXISTS idx_audits_owner ON audits(owner, claim_id, version);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			clock INTEGER PRIMARY KEY,
			path TEXT NOT NULL,
			saved_at TEXT NOT NULL,
			players INTEGER NOT NULL,
			claims INTEGER NOT NULL
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	if _, err := db.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// WriteAudit enqueues one audit entry. Drops if the indexer falls
// behind; the JSONL logs remain the source of truth.
func (s *SQLiteIndex) WriteAudit(entry land.AuditEntry) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: entry}:
	default:
	}
	return nil
}

// RecordSnapshot notes where a snapshot landed and how big it was.
func (s *SQLiteIndex) RecordSnapshot(path string, doc snapshot.DocumentV1) {
	if s == nil || s.closed.Load() {
		return
	}
	claims := 0
	for _, p := range doc.Players {
		claims += len(p.Claims)
	}
	r := snapshotRow{
		Clock:   doc.Header.Clock,
		Path:    path,
		SavedAt: doc.Header.SavedAt,
		Players: len(doc.Players),
		Claims:  claims,
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapshot: r}:
	default:
	}
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO audits(version,seq,time,actor,op,owner,claim_id,dim,x,y,z,detail,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(clock,path,saved_at,players,claims) VALUES(?,?,?,?,?)`)
	defer func() {
		if insertAudit != nil {
			_ = insertAudit.Close()
		}
		if insertSnapshot != nil {
			_ = insertSnapshot.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second

		lastVersion uint64
		auditSeq    int
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
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}

	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqAudit:
			a := r.audit
			if a.Version != lastVersion {
				lastVersion = a.Version
				auditSeq = 0
			}
			seq := auditSeq
			auditSeq++
			raw, _ := json.Marshal(a)
			if insertAudit != nil {
				if _, err := tx.Stmt(insertAudit).Exec(
					int64(a.Version),
					seq,
					a.Time,
					a.Actor,
					a.Op,
					a.Owner,
					a.ClaimID,
					a.Dim,
					a.Pos[0], a.Pos[1], a.Pos[2],
					a.Detail,
					string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqSnapshot:
			sn := r.snapshot
			if insertSnapshot != nil {
				if _, err := tx.Stmt(insertSnapshot).Exec(
					int64(sn.Clock),
					sn.Path,
					sn.SavedAt,
					sn.Players,
					sn.Claims,
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}
		}
		flushIfNeeded()
	}

	commit()
}
