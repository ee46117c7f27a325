package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional)")
	limit := fs.Int("limit", 20, "result limit")
	actor := fs.String("actor", "", "actor filter (audits)")
	owner := fs.String("owner", "", "owner filter (audits)")
	op := fs.String("op", "", "op filter (audits)")
	_ = fs.Parse(args)

	q := "snapshots"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	if *limit <= 0 {
		*limit = 20
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index.db")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	switch q {
	case "snapshots":
		rows, err := db.Query(`SELECT clock,path,saved_at,players,claims FROM snapshots ORDER BY clock DESC LIMIT ?`, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Clock   uint64 `json:"clock"`
				Path    string `json:"path"`
				SavedAt string `json:"saved_at"`
				Players int    `json:"players"`
				Claims  int    `json:"claims"`
			}
			if err := rows.Scan(&r.Clock, &r.Path, &r.SavedAt, &r.Players, &r.Claims); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "audits":
		where := []string{"1=1"}
		qargs := []any{}
		if s := strings.TrimSpace(*actor); s != "" {
			where = append(where, "actor=?")
			qargs = append(qargs, s)
		}
		if s := strings.TrimSpace(*owner); s != "" {
			where = append(where, "owner=?")
			qargs = append(qargs, s)
		}
		if s := strings.TrimSpace(*op); s != "" {
			where = append(where, "op=?")
			qargs = append(qargs, s)
		}
		qargs = append(qargs, *limit)

		stmt := `SELECT version,seq,time,actor,op,owner,claim_id,dim,x,y,z,detail FROM audits WHERE ` +
			strings.Join(where, " AND ") + ` ORDER BY version DESC, seq ASC LIMIT ?`
		rows, err := db.Query(stmt, qargs...)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				Version uint64 `json:"version"`
				Seq     int    `json:"seq"`
				Time    string `json:"time"`
				Actor   string `json:"actor"`
				Op      string `json:"op"`
				Owner   string `json:"owner"`
				ClaimID string `json:"claim_id"`
				Dim     string `json:"dim"`
				X       int    `json:"x"`
				Y       int    `json:"y"`
				Z       int    `json:"z"`
				Detail  string `json:"detail,omitempty"`
			}
			if err := rows.Scan(&r.Version, &r.Seq, &r.Time, &r.Actor, &r.Op, &r.Owner, &r.ClaimID, &r.Dim, &r.X, &r.Y, &r.Z, &r.Detail); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data|-db PATH] [-limit N] [-actor A] [-owner O] [-op OP] snapshots|audits")
		os.Exit(2)
	}
}
