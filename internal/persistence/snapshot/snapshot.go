// Package snapshot persists the claims document. The on-disk form is a
// JSON header line followed by the JSON document, zstd-compressed. The
// document schema tolerates every historical save shape: mates as a
// list or a map, flags nested or as top-level security keys, missing
// buffer rules.
package snapshot

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"

	"basekeeper.gg/internal/claim"
)

type Header struct {
	Version int    `json:"version"`
	SavedAt string `json:"saved_at"`
	Clock   uint64 `json:"clock"`
}

// DocumentV1 is the whole persisted state: every player's claims plus
// the runtime settings document.
type DocumentV1 struct {
	Header   Header              `json:"header"`
	Players  map[string]PlayerV1 `json:"players"`
	Settings map[string]any      `json:"settings,omitempty"`
}

type PlayerV1 struct {
	Claims map[string]ClaimV1 `json:"claims"`
}

// ClaimV1 is the wire form of one claim. Pointer fields and the raw
// mates payload keep "absent" distinguishable from zero so old saves
// round-trip through the normalization rules instead of being clobbered.
type ClaimV1 struct {
	Name   string `json:"name,omitempty"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Z      int    `json:"z"`
	Radius int    `json:"radius"`
	Dim    string `json:"dim,omitempty"`

	BufferRule *int `json:"buffer_rule,omitempty"`

	Flags *FlagsV1        `json:"flags,omitempty"`
	Mates json.RawMessage `json:"mates,omitempty"`

	// Oldest saves kept security keys directly on the claim.
	SecurityBuild       *bool `json:"security_build,omitempty"`
	SecurityPlaceBreak  *bool `json:"security_place_break,omitempty"`
	SecurityInteract    *bool `json:"security_interact,omitempty"`
	SecurityKillPassive *bool `json:"security_kill_passive,omitempty"`
}

type FlagsV1 struct {
	AllowBuild       *bool `json:"allow_build,omitempty"`
	AllowInteract    *bool `json:"allow_interact,omitempty"`
	AllowKillPassive *bool `json:"allow_kill_passive,omitempty"`

	SecurityBuild       *bool `json:"security_build,omitempty"`
	SecurityPlaceBreak  *bool `json:"security_place_break,omitempty"`
	SecurityInteract    *bool `json:"security_interact,omitempty"`
	SecurityKillPassive *bool `json:"security_kill_passive,omitempty"`
}

// ToModel converts the wire claim to the in-memory model. A missing
// buffer rule becomes -1 so the defaults sweep can stamp the current
// rule later.
func (w ClaimV1) ToModel(id string) *claim.Claim {
	c := &claim.Claim{
		ID:         id,
		Name:       w.Name,
		X:          w.X,
		Y:          w.Y,
		Z:          w.Z,
		Radius:     w.Radius,
		Dim:        claim.NormalizeDim(w.Dim),
		BufferRule: -1,
	}
	if c.Name == "" {
		c.Name = id
	}
	if w.BufferRule != nil {
		c.BufferRule = *w.BufferRule
	}
	if w.Flags != nil {
		c.Flags = claim.Flags{
			AllowBuild:          w.Flags.AllowBuild,
			AllowInteract:       w.Flags.AllowInteract,
			AllowKillPassive:    w.Flags.AllowKillPassive,
			SecurityBuild:       w.Flags.SecurityBuild,
			SecurityPlaceBreak:  w.Flags.SecurityPlaceBreak,
			SecurityInteract:    w.Flags.SecurityInteract,
			SecurityKillPassive: w.Flags.SecurityKillPassive,
		}
	}
	c.LegacySecurityBuild = w.SecurityBuild
	c.LegacySecurityPlaceBreak = w.SecurityPlaceBreak
	c.LegacySecurityInteract = w.SecurityInteract
	c.LegacySecurityKillPassive = w.SecurityKillPassive
	c.Mates = decodeMates(w.Mates)
	return c
}

// decodeMates accepts the map form, the legacy list form, or nothing.
func decodeMates(raw json.RawMessage) map[string]int {
	if len(raw) == 0 {
		return map[string]int{}
	}
	var m map[string]int
	if err := json.Unmarshal(raw, &m); err == nil && m != nil {
		return m
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return claim.MatesFromList(list)
	}
	return map[string]int{}
}

// FromModel converts a normalized in-memory claim to its wire form.
func FromModel(c *claim.Claim) ClaimV1 {
	buf := c.BufferRule
	mates, _ := json.Marshal(c.Mates)
	return ClaimV1{
		Name:       c.Name,
		X:          c.X,
		Y:          c.Y,
		Z:          c.Z,
		Radius:     c.Radius,
		Dim:        c.Dim,
		BufferRule: &buf,
		Flags: &FlagsV1{
			AllowBuild:          c.Flags.AllowBuild,
			AllowInteract:       c.Flags.AllowInteract,
			AllowKillPassive:    c.Flags.AllowKillPassive,
			SecurityBuild:       c.Flags.SecurityBuild,
			SecurityInteract:    c.Flags.SecurityInteract,
			SecurityKillPassive: c.Flags.SecurityKillPassive,
		},
		Mates: mates,
	}
}

// BuildDocument assembles the persisted document from the live claim
// set.
func BuildDocument(entries []claim.Entry, settingsDoc map[string]any, version uint64, now time.Time) DocumentV1 {
	doc := DocumentV1{
		Header: Header{
			Version: 1,
			SavedAt: now.UTC().Format(time.RFC3339Nano),
			Clock:   version,
		},
		Players:  make(map[string]PlayerV1),
		Settings: settingsDoc,
	}
	for _, e := range entries {
		p, ok := doc.Players[e.Owner]
		if !ok {
			p = PlayerV1{Claims: make(map[string]ClaimV1)}
			doc.Players[e.Owner] = p
		}
		p.Claims[e.Claim.ID] = FromModel(e.Claim)
	}
	return doc
}

// Restore loads every claim from the document into the store.
func Restore(doc DocumentV1, store *claim.Store) {
	for owner, p := range doc.Players {
		for id, w := range p.Claims {
			store.Put(owner, w.ToModel(id))
		}
	}
}

func WriteDocument(path string, doc DocumentV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	defer enc.Close()

	bw := bufio.NewWriterSize(enc, 256*1024)
	defer bw.Flush()

	hb, _ := json.Marshal(doc.Header)
	if _, err := bw.Write(hb); err != nil {
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		return err
	}
	if err := json.NewEncoder(bw).Encode(&doc); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	return nil
}

func ReadDocument(path string) (DocumentV1, error) {
	var doc DocumentV1
	f, err := os.Open(path)
	if err != nil {
		return doc, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return doc, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// Header line is advisory; the body carries it too.
	_, _ = br.ReadBytes('\n')

	if err := json.NewDecoder(br).Decode(&doc); err != nil {
		return doc, fmt.Errorf("decode document: %w", err)
	}
	return doc, nil
}
