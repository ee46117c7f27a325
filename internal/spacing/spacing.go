// Package spacing validates proposed claim radii against the spawn
// buffer and other players' bases. Results are structured: callers get
// the feasible radius plus the specific conflicts that stopped growth,
// because the UI has to explain why.
package spacing

import (
	"strings"

	"basekeeper.gg/internal/claim"
	"basekeeper.gg/internal/geo"
	"basekeeper.gg/internal/settings"
)

// Step is the radius increment offered to players.
const Step = 50

// Conflict identifies one base that blocks a proposed radius.
type Conflict struct {
	Owner string `json:"owner"`
	CX    int    `json:"cx"`
	CZ    int    `json:"cz"`
	Dim   string `json:"dim"`
}

// Validator evaluates spacing rules over the canonical claim set.
type Validator struct {
	store *claim.Store
}

func NewValidator(store *claim.Store) *Validator {
	return &Validator{store: store}
}

// SpawnBlocked reports whether a circle of radius r at (x,z) sits too
// close to the dimension's spawn. The comparison is strictly less-than:
// touching the boundary exactly is allowed.
func SpawnBlocked(v settings.View, x, z, r int, dim string) bool {
	cfg := v.SpawnFor(dim)
	if !cfg.OK {
		return false
	}
	d := geo.Dist2D(float64(x), float64(z), float64(cfg.X), float64(cfg.Z))
	return d < float64(r+cfg.Radius)
}

// Conflicts lists every other-owner base in dim whose spacing envelope
// a circle of radius r at (x,z) would violate:
//
//	dist(centers) < r + rOther + max(currentBuffer, stampedBuffer)
//
// strictly — equal distance is not a conflict. ignoreCenter excludes a
// base's own center during resize checks. The result is deduplicated.
func (s *Validator) Conflicts(v settings.View, owner string, x, z, r int, dim string, ignoreCenter *[2]int) []Conflict {
	dk := claim.NormalizeDim(dim)
	curBuf := v.Rules().MinDistBetweenBases

	var out []Conflict
	seen := make(map[Conflict]struct{})
	for _, e := range s.store.All() {
		c := e.Claim
		if c.Dim != dk {
			continue
		}
		if ignoreCenter != nil && c.X == ignoreCenter[0] && c.Z == ignoreCenter[1] {
			continue
		}
		if strings.EqualFold(e.Owner, owner) {
			continue
		}
		buf := curBuf
		if c.BufferRule > buf {
			buf = c.BufferRule
		}
		d := geo.Dist2D(float64(x), float64(z), float64(c.X), float64(c.Z))
		if d < float64(r+c.Radius+buf) {
			k := Conflict{Owner: e.Owner, CX: c.X, CZ: c.Z, Dim: dk}
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				out = append(out, k)
			}
		}
	}
	return out
}

// MaxFeasibleNewRadius walks radii 50, 100, ... up to adminCap and
// returns the largest conflict-free one for a brand-new base at (x,z).
// A new base may never start spawn-blocked, so the first spawn-blocked
// step kills the whole attempt: 0 means "cannot claim here".
func (s *Validator) MaxFeasibleNewRadius(v settings.View, owner string, x, z int, dim string, adminCap int) int {
	best := 0
	for r := Step; r <= adminCap; r += Step {
		if SpawnBlocked(v, x, z, r, dim) {
			return 0
		}
		if len(s.Conflicts(v, owner, x, z, r, dim, nil)) > 0 {
			break
		}
		best = r
	}
	return best
}

// MaxFeasibleResize walks upward from the claim's current radius in
// 50-block steps and returns the largest radius this base could grow
// to in place, ignoring its own center. The current radius is always
// feasible: existing bases are never shrunk by rule changes.
func (s *Validator) MaxFeasibleResize(v settings.View, owner string, c *claim.Claim, rulesCap int) int {
	if c == nil {
		return 0
	}
	best := c.Radius
	ignore := [2]int{c.X, c.Z}
	for {
		cand := best + Step
		if cand > rulesCap {
			break
		}
		if SpawnBlocked(v, c.X, c.Z, cand, c.Dim) {
			break
		}
		if len(s.Conflicts(v, owner, c.X, c.Z, cand, c.Dim, &ignore)) > 0 {
			break
		}
		best = cand
	}
	return best
}

// CheckReport is the user-facing spacing diagnostic: what blocks a
// claim of the given radius here, together with the rule values in
// force so the UI can print them.
type CheckReport struct {
	InsideSpawnProtect  bool       `json:"inside_spawn_protect"`
	TooCloseToSpawn     bool       `json:"too_close_spawn_rule"`
	Conflicts           []Conflict `json:"conflicts"`
	SpawnRadius         int        `json:"spr"`
	MinDistFromSpawn    int        `json:"d_spawn_rule"`
	MinDistBetweenBases int        `json:"d_players_rule"`
}

// FullCheck produces the diagnostic report for one proposed claim.
// Admins get an all-clear report that still carries the rule values.
// Unlike the feasibility walk, the report measures edge gaps against
// the configured minimum distances, matching what the rules screen
// shows players.
func (s *Validator) FullCheck(v settings.View, owner string, x, z, radius int, dim string, adminBypass bool) CheckReport {
	rules := v.Rules()
	cfg := v.SpawnFor(dim)
	rep := CheckReport{
		SpawnRadius:         cfg.Radius,
		MinDistFromSpawn:    rules.MinDistFromSpawn,
		MinDistBetweenBases: rules.MinDistBetweenBases,
	}
	if adminBypass && v.IsAdmin(owner) {
		return rep
	}

	if cfg.OK {
		d := geo.Dist2D(float64(x), float64(z), float64(cfg.X), float64(cfg.Z))
		rep.InsideSpawnProtect = d < float64(cfg.Radius)
		rep.TooCloseToSpawn = d-float64(radius) < float64(rules.MinDistFromSpawn)
	}

	dk := claim.NormalizeDim(dim)
	seen := make(map[Conflict]struct{})
	for _, e := range s.store.All() {
		c := e.Claim
		if c.Dim != dk || strings.EqualFold(e.Owner, owner) {
			continue
		}
		d := geo.Dist2D(float64(x), float64(z), float64(c.X), float64(c.Z))
		edgeGap := d - float64(radius+c.Radius)
		if edgeGap < float64(rules.MinDistBetweenBases) {
			k := Conflict{Owner: e.Owner, CX: c.X, CZ: c.Z, Dim: dk}
			if _, dup := seen[k]; !dup {
				seen[k] = struct{}{}
				rep.Conflicts = append(rep.Conflicts, k)
			}
		}
	}
	return rep
}
