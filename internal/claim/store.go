package claim

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// VersionClock is the process-wide monotonic counter bumped on every
// claim mutation. The spatial index compares against it to decide when
// its grid is stale.
type VersionClock struct {
	v atomic.Uint64
}

func (c *VersionClock) Bump() uint64    { return c.v.Add(1) }
func (c *VersionClock) Current() uint64 { return c.v.Load() }

// Store owns the canonical owner -> claims mapping. It enforces no
// caps and does no spatial reasoning; it keeps the data normalized and
// bumps the version clock on every mutation so derived structures
// invalidate. Callers serialize access (see the land service).
type Store struct {
	players map[string]map[string]*Claim // owner -> claim id -> claim
	clock   *VersionClock
}

func NewStore(clock *VersionClock) *Store {
	return &Store{
		players: make(map[string]map[string]*Claim),
		clock:   clock,
	}
}

func (s *Store) Clock() *VersionClock { return s.clock }

// ownerKey resolves a name to the stored owner key, case-insensitively.
// Returns the name itself when the owner is new.
func (s *Store) ownerKey(name string) string {
	if _, ok := s.players[name]; ok {
		return name
	}
	for k := range s.players {
		if strings.EqualFold(k, name) {
			return k
		}
	}
	return name
}

// Create inserts a new claim for owner. The id is the first free
// base_N. New bases start fully locked: every action blocked for
// untrusted visitors until the owner opens it up. The claim-count cap
// is the caller's business (CountFor).
func (s *Store) Create(owner string, x, y, z, radius int, dim string, bufferRule int) *Claim {
	key := s.ownerKey(owner)
	claims := s.players[key]
	if claims == nil {
		claims = make(map[string]*Claim)
		s.players[key] = claims
	}

	n := 1
	for {
		if _, taken := claims[fmt.Sprintf("base_%d", n)]; !taken {
			break
		}
		n++
	}
	id := fmt.Sprintf("base_%d", n)

	c := &Claim{
		ID:         id,
		Name:       id,
		X:          x,
		Y:          y,
		Z:          z,
		Radius:     radius,
		Dim:        NormalizeDim(dim),
		BufferRule: bufferRule,
		Mates:      map[string]int{},
	}
	blocked := false
	c.Flags.AllowBuild = &blocked
	c.Flags.AllowInteract = &blocked
	c.Flags.AllowKillPassive = &blocked
	NormalizeFlags(c)

	claims[id] = c
	s.clock.Bump()
	return c
}

// Put inserts a claim as-is (snapshot load, admin import). The claim is
// normalized first.
func (s *Store) Put(owner string, c *Claim) {
	key := s.ownerKey(owner)
	claims := s.players[key]
	if claims == nil {
		claims = make(map[string]*Claim)
		s.players[key] = claims
	}
	c.Dim = NormalizeDim(c.Dim)
	NormalizeFlags(c)
	NormalizeMates(c)
	claims[c.ID] = c
	s.clock.Bump()
}

// Get returns the claim, or nil when the owner or id is unknown.
func (s *Store) Get(owner, id string) *Claim {
	return s.players[s.ownerKey(owner)][id]
}

// Delete removes the claim. Deleting something absent is a no-op.
func (s *Store) Delete(owner, id string) {
	key := s.ownerKey(owner)
	if _, ok := s.players[key][id]; !ok {
		return
	}
	delete(s.players[key], id)
	if len(s.players[key]) == 0 {
		delete(s.players, key)
	}
	s.clock.Bump()
}

func (s *Store) Rename(owner, id, name string) bool {
	c := s.Get(owner, id)
	if c == nil {
		return false
	}
	c.Name = name
	s.clock.Bump()
	return true
}

func (s *Store) Resize(owner, id string, radius int) bool {
	c := s.Get(owner, id)
	if c == nil || radius < 0 {
		return false
	}
	c.Radius = radius
	s.clock.Bump()
	return true
}

func (s *Store) Move(owner, id string, x, y, z int) bool {
	c := s.Get(owner, id)
	if c == nil {
		return false
	}
	c.X, c.Y, c.Z = x, y, z
	s.clock.Bump()
	return true
}

// SetFlags applies a partial flag update; nil fields keep their prior
// value. Both the allow_* booleans and their security_* mirrors are
// rewritten.
func (s *Store) SetFlags(c *Claim, build, interact, killPassive *bool) {
	if c == nil {
		return
	}
	curB, curI, curK := ResolveFlags(c)
	if build != nil {
		curB = *build
	}
	if interact != nil {
		curI = *interact
	}
	if killPassive != nil {
		curK = *killPassive
	}
	c.Flags = Flags{
		AllowBuild:       &curB,
		AllowInteract:    &curI,
		AllowKillPassive: &curK,
	}
	NormalizeFlags(c)
	s.clock.Bump()
}

// AddMate adds name at the given rank. False when the name is already a
// mate (case-insensitive) or empty; no duplicate entries, ever.
func (s *Store) AddMate(c *Claim, name string, rank int) bool {
	if c == nil {
		return false
	}
	nm := strings.TrimSpace(name)
	if nm == "" || IsMate(c, nm) {
		return false
	}
	NormalizeMates(c)
	c.Mates[nm] = clampRank(rank)
	s.clock.Bump()
	return true
}

// RemoveMate removes name (case-insensitive). False when absent.
func (s *Store) RemoveMate(c *Claim, name string) bool {
	if c == nil {
		return false
	}
	for k := range c.Mates {
		if strings.EqualFold(k, name) {
			delete(c.Mates, k)
			s.clock.Bump()
			return true
		}
	}
	return false
}

// SetRank changes an existing mate's rank, clamped to {0,1}. Absent
// mates are not auto-added.
func (s *Store) SetRank(c *Claim, name string, rank int) bool {
	if c == nil {
		return false
	}
	for k := range c.Mates {
		if strings.EqualFold(k, name) {
			c.Mates[k] = clampRank(rank)
			s.clock.Bump()
			return true
		}
	}
	return false
}

// CountFor is the owner's claim count; the max-bases cap is checked
// against this by the caller before Create.
func (s *Store) CountFor(owner string) int {
	return len(s.players[s.ownerKey(owner)])
}

// All returns every (owner, claim) pair, sorted by owner then claim id
// so bulk operations are deterministic.
func (s *Store) All() []Entry {
	out := make([]Entry, 0, 16)
	for owner, claims := range s.players {
		for _, c := range claims {
			out = append(out, Entry{Owner: owner, Claim: c})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Owner != out[j].Owner {
			return out[i].Owner < out[j].Owner
		}
		return out[i].Claim.ID < out[j].Claim.ID
	})
	return out
}

// ForOwner returns the owner's claims sorted by id.
func (s *Store) ForOwner(owner string) []*Claim {
	claims := s.players[s.ownerKey(owner)]
	out := make([]*Claim, 0, len(claims))
	for _, c := range claims {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// BasesForViewer lists every claim the viewer owns or is a mate on,
// case-insensitive on both sides.
func (s *Store) BasesForViewer(viewer string) []Entry {
	out := make([]Entry, 0, 8)
	for _, e := range s.All() {
		if strings.EqualFold(e.Owner, viewer) || IsMate(e.Claim, viewer) {
			out = append(out, e)
		}
	}
	return out
}

// Owners returns the owner names, sorted.
func (s *Store) Owners() []string {
	out := make([]string, 0, len(s.players))
	for k := range s.players {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// EnsureDefaults stamps missing per-claim defaults across the whole
// store: buffer rule, explicit flags, mates map, dimension. Returns
// true when anything changed so the caller can persist once.
func (s *Store) EnsureDefaults(currentBuffer int) bool {
	changed := false
	for _, claims := range s.players {
		for id, c := range claims {
			if c.ID == "" {
				c.ID = id
				changed = true
			}
			if c.BufferRule < 0 {
				c.BufferRule = currentBuffer
				changed = true
			}
			if dk := NormalizeDim(c.Dim); dk != c.Dim {
				c.Dim = dk
				changed = true
			}
			if c.Flags.AllowBuild == nil || c.Flags.AllowInteract == nil ||
				c.Flags.AllowKillPassive == nil || c.Flags.SecurityBuild == nil ||
				c.LegacySecurityBuild != nil || c.LegacySecurityPlaceBreak != nil ||
				c.LegacySecurityInteract != nil || c.LegacySecurityKillPassive != nil {
				NormalizeFlags(c)
				changed = true
			}
			if c.Mates == nil {
				c.Mates = map[string]int{}
				changed = true
			}
		}
	}
	if changed {
		s.clock.Bump()
	}
	return changed
}
