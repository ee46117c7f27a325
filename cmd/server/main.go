package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"basekeeper.gg/internal/claim"
	"basekeeper.gg/internal/land"
	"basekeeper.gg/internal/persistence/archive"
	"basekeeper.gg/internal/persistence/indexdb"
	persistlog "basekeeper.gg/internal/persistence/log"
	"basekeeper.gg/internal/persistence/snapshot"
	"basekeeper.gg/internal/protocol"
	"basekeeper.gg/internal/settings"
	"basekeeper.gg/internal/transport/ws"
)

// tickHz drives the spatial index rebuild debounce: at most one rebuild
// per tick regardless of mutation rate.
const tickHz = 20

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http listen address")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		rulesPath  = flag.String("rules", "./configs/rules.yaml", "claim rules yaml")
		schemasDir = flag.String("schemas", "./schemas", "wire schema directory")
		snapPath   = flag.String("snapshot", "", "claims document to load (default: <data>/claims.json.zst)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite read-model")
		archEvery  = flag.Uint64("archive_every", 500, "archive the claims document every N versions (0 disables)")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	schemas, err := protocol.LoadSchemas(*schemasDir)
	if err != nil {
		logger.Fatalf("load schemas: %v", err)
	}

	rulesDoc, err := settings.LoadYAML(*rulesPath)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Fatalf("load rules: %v", err)
		}
		logger.Printf("rules not found (%s); using defaults", *rulesPath)
	}

	docPath := strings.TrimSpace(*snapPath)
	if docPath == "" {
		docPath = filepath.Join(*dataDir, "claims.json.zst")
	}

	store := claim.NewStore(&claim.VersionClock{})
	runtimeDoc := map[string]any{}
	if _, statErr := os.Stat(docPath); statErr == nil {
		doc, err := snapshot.ReadDocument(docPath)
		if err != nil {
			logger.Fatalf("read claims document: %v", err)
		}
		snapshot.Restore(doc, store)
		if doc.Settings != nil {
			runtimeDoc = doc.Settings
		}
		logger.Printf("resumed from %s clock=%d players=%d", filepath.Base(docPath), doc.Header.Clock, len(doc.Players))
	}

	// The runtime document (persisted admin edits) overrides rules.yaml.
	view := func() settings.View { return settings.Merge(rulesDoc, runtimeDoc) }

	start := time.Now()
	ticks := func() uint64 { return uint64(time.Since(start) / (time.Second / tickHz)) }

	svc := land.NewService(store, ticks, view, logger)

	var idx *indexdb.SQLiteIndex
	if !*disableDB {
		idx, err = indexdb.OpenSQLite(filepath.Join(*dataDir, "index.db"))
		if err != nil {
			logger.Fatalf("open index db: %v", err)
		}
		defer idx.Close()
		svc.AddAuditSink(idx)
	}

	auditLog := persistlog.NewAuditLogger(*dataDir)
	defer auditLog.Close()
	svc.AddAuditSink(auditLog)

	svc.SetSaveHook(func(entries []claim.Entry, version uint64) error {
		doc := snapshot.BuildDocument(entries, runtimeDoc, version, time.Now())
		if err := snapshot.WriteDocument(docPath, doc); err != nil {
			return err
		}
		if idx != nil {
			idx.RecordSnapshot(docPath, doc)
		}
		if dst, archived, err := archive.ArchiveDocument(*dataDir, docPath, doc, *archEvery); err != nil {
			logger.Printf("archive: %v", err)
		} else if archived {
			logger.Printf("archived claims document clock=%d path=%s", version, dst)
		}
		return nil
	})

	if svc.EnsureDefaults() {
		logger.Printf("stamped missing claim defaults")
	}

	ctx, cancel := signalContext()
	defer cancel()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/v1/ws", ws.NewServer(svc, view, schemas, logger).Handler())

	srv := &http.Server{
		Addr:              *addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatalf("ListenAndServe: %v", err)
	}
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}
