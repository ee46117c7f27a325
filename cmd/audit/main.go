// Command audit reads the rotated audit logs offline, filters them, and
// checks that the version clock never goes backwards across files.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"basekeeper.gg/internal/land"
)

func main() {
	var (
		dataDir  = flag.String("data", "./data", "runtime data directory")
		actor    = flag.String("actor", "", "actor filter (optional)")
		owner    = flag.String("owner", "", "owner filter (optional)")
		op       = flag.String("op", "", "op filter (optional)")
		fromVer  = flag.Uint64("from_version", 0, "first version to print (inclusive, optional)")
		toVer    = flag.Uint64("to_version", 0, "last version to print (inclusive, optional)")
		quiet    = flag.Bool("quiet", false, "verify only, print nothing but the summary")
	)
	flag.Parse()

	files, err := listAuditFiles(filepath.Join(*dataDir, "audit"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "list audit logs:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no audit logs found under", filepath.Join(*dataDir, "audit"))
		os.Exit(1)
	}

	match := func(e land.AuditEntry) bool {
		if *actor != "" && !strings.EqualFold(e.Actor, *actor) {
			return false
		}
		if *owner != "" && !strings.EqualFold(e.Owner, *owner) {
			return false
		}
		if *op != "" && e.Op != *op {
			return false
		}
		if *fromVer != 0 && e.Version < *fromVer {
			return false
		}
		if *toVer != 0 && e.Version > *toVer {
			return false
		}
		return true
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)

	var total, printed uint64
	var lastVersion uint64
	for _, path := range files {
		err := scanFile(path, func(e land.AuditEntry) error {
			total++
			if e.Version < lastVersion {
				return fmt.Errorf("version went backwards: %d after %d (file=%s)", e.Version, lastVersion, filepath.Base(path))
			}
			lastVersion = e.Version
			if match(e) {
				printed++
				if !*quiet {
					_ = enc.Encode(e)
				}
			}
			return nil
		})
		if err != nil {
			fmt.Fprintln(os.Stderr, "scan:", err)
			os.Exit(1)
		}
	}
	fmt.Fprintf(os.Stderr, "audit ok: entries=%d matched=%d last_version=%d files=%d\n", total, printed, lastVersion, len(files))
}

func listAuditFiles(dir string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, "audit-") && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

func scanFile(path string, fn func(land.AuditEntry) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	for sc.Scan() {
		var e land.AuditEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return sc.Err()
}
