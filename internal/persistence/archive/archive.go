// Package archive keeps periodic point-in-time copies of the claims
// document so an admin can roll the world back past a bad edit.
package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"basekeeper.gg/internal/persistence/snapshot"
)

type Meta struct {
	Clock     uint64 `json:"clock"`
	Players   int    `json:"players"`
	Claims    int    `json:"claims"`
	Document  string `json:"document"`
	CreatedAt string `json:"created_at"`
}

// ArchiveDocument copies the claims document into
// `dataDir/archives/clock_<N>/` when the version clock lands on an
// `every` boundary. It returns (archivedPath, archived=true) on a copy.
func ArchiveDocument(dataDir, docPath string, doc snapshot.DocumentV1, every uint64) (archivedPath string, archived bool, err error) {
	if every == 0 {
		return "", false, nil
	}
	clock := doc.Header.Clock
	if clock == 0 || clock%every != 0 {
		return "", false, nil
	}

	archiveDir := filepath.Join(dataDir, "archives", fmt.Sprintf("clock_%08d", clock))
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return "", false, err
	}

	dst := filepath.Join(archiveDir, filepath.Base(docPath))
	if err := copyFile(docPath, dst); err != nil {
		return "", false, err
	}

	claims := 0
	for _, p := range doc.Players {
		claims += len(p.Claims)
	}
	meta := Meta{
		Clock:     clock,
		Players:   len(doc.Players),
		Claims:    claims,
		Document:  filepath.Base(dst),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	if b, err := json.MarshalIndent(meta, "", "  "); err == nil {
		_ = os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644)
	}

	return dst, true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
