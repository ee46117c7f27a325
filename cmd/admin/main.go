// Command admin inspects a basekeeper data directory offline: list
// bases from the claims document, query the sqlite read-model, and dry-run
// a spot check without a running server.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"basekeeper.gg/internal/claim"
	"basekeeper.gg/internal/persistence/snapshot"
	"basekeeper.gg/internal/settings"
	"basekeeper.gg/internal/spacing"
)

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "bases":
			basesCmd(os.Args[2:])
			return
		case "db":
			dbCmd(os.Args[2:])
			return
		case "check":
			checkCmd(os.Args[2:])
			return
		}
	}
	basesCmd(os.Args[1:])
}

func loadDocument(dataDir, docPath string) snapshot.DocumentV1 {
	path := strings.TrimSpace(docPath)
	if path == "" {
		path = filepath.Join(dataDir, "claims.json.zst")
	}
	doc, err := snapshot.ReadDocument(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read claims document:", err)
		os.Exit(1)
	}
	return doc
}

func basesCmd(args []string) {
	fs := flag.NewFlagSet("bases", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	docPath := fs.String("doc", "", "claims document path (optional)")
	player := fs.String("player", "", "owner filter (optional, case-insensitive)")
	_ = fs.Parse(args)

	doc := loadDocument(*dataDir, *docPath)
	want := strings.ToLower(strings.TrimSpace(*player))

	for owner, p := range doc.Players {
		if want != "" && strings.ToLower(owner) != want {
			continue
		}
		for id, w := range p.Claims {
			c := w.ToModel(id)
			printJSON(struct {
				Owner  string `json:"owner"`
				ID     string `json:"id"`
				Name   string `json:"name"`
				X      int    `json:"x"`
				Y      int    `json:"y"`
				Z      int    `json:"z"`
				Radius int    `json:"radius"`
				Dim    string `json:"dim"`
				Buffer int    `json:"buffer_rule"`
				Mates  int    `json:"mates"`
			}{owner, c.ID, c.Name, c.X, c.Y, c.Z, c.Radius, c.Dim, c.BufferRule, len(c.Mates)})
		}
	}
}

func checkCmd(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	docPath := fs.String("doc", "", "claims document path (optional)")
	rulesPath := fs.String("rules", "./configs/rules.yaml", "claim rules yaml")
	owner := fs.String("owner", "", "acting player (required)")
	x := fs.Int("x", 0, "center x")
	z := fs.Int("z", 0, "center z")
	radius := fs.Int("radius", 0, "radius to check (0 = feasibility only)")
	dim := fs.String("dim", claim.DimOverworld, "dimension")
	_ = fs.Parse(args)

	if strings.TrimSpace(*owner) == "" {
		fmt.Fprintln(os.Stderr, "missing -owner")
		os.Exit(2)
	}

	doc := loadDocument(*dataDir, *docPath)
	rulesDoc, err := settings.LoadYAML(*rulesPath)
	if err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "load rules:", err)
		os.Exit(1)
	}
	view := settings.Merge(rulesDoc, doc.Settings)

	store := claim.NewStore(&claim.VersionClock{})
	snapshot.Restore(doc, store)
	val := spacing.NewValidator(store)

	rules := view.Rules()
	rcap := rules.OtherBaseRadiusCap
	if store.CountFor(*owner) == 0 {
		rcap = rules.FirstBaseRadiusCap
	}
	feasible := val.MaxFeasibleNewRadius(view, *owner, *x, *z, *dim, rcap)

	r := *radius
	if r <= 0 {
		r = feasible
	}
	report := val.FullCheck(view, *owner, *x, *z, r, *dim, false)

	printJSON(struct {
		Owner          string              `json:"owner"`
		X              int                 `json:"x"`
		Z              int                 `json:"z"`
		Dim            string              `json:"dim"`
		CheckedRadius  int                 `json:"checked_radius"`
		FeasibleRadius int                 `json:"feasible_radius"`
		Report         spacing.CheckReport `json:"report"`
	}{*owner, *x, *z, claim.NormalizeDim(*dim), r, feasible, report})
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
