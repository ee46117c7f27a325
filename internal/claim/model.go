package claim

import "strings"

// Dimension keys. Claims and spawn configuration are always scoped to
// exactly one of these.
const (
	DimOverworld = "overworld"
	DimNether    = "nether"
	DimEnd       = "end"
)

// NormalizeDim maps engine dimension names ("minecraft:the_nether",
// "TheEnd", ...) onto the canonical keys. Anything unrecognized is the
// overworld.
func NormalizeDim(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if strings.Contains(s, "nether") || strings.Contains(s, "hell") {
		return DimNether
	}
	if strings.Contains(s, "end") {
		return DimEnd
	}
	return DimOverworld
}

// Rank values for basemates.
const (
	RankMember  = 0
	RankManager = 1
)

// Flags carries the per-claim permission bits in all the shapes older
// saves used. allow_* is authoritative when present; security_* is the
// inverted mirror (true = blocked) kept for old readers;
// security_place_break is an even older alias for security_build.
// Nil means "key absent" and resolution falls through to the next
// source.
type Flags struct {
	AllowBuild       *bool `json:"allow_build,omitempty"`
	AllowInteract    *bool `json:"allow_interact,omitempty"`
	AllowKillPassive *bool `json:"allow_kill_passive,omitempty"`

	SecurityBuild       *bool `json:"security_build,omitempty"`
	SecurityPlaceBreak  *bool `json:"security_place_break,omitempty"`
	SecurityInteract    *bool `json:"security_interact,omitempty"`
	SecurityKillPassive *bool `json:"security_kill_passive,omitempty"`
}

// Claim is one player base: a circle on the ground plane of a single
// dimension. Y is stored for teleport convenience only and never enters
// containment math.
type Claim struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Z      int    `json:"z"`
	Radius int    `json:"radius"`
	Dim    string `json:"dim"`

	// BufferRule is the inter-claim spacing stamped at creation time.
	// Changing the admin rule later never resizes old buffers.
	BufferRule int `json:"buffer_rule"`

	Flags Flags          `json:"flags"`
	Mates map[string]int `json:"mates"`

	// Deprecated top-level security keys from the oldest save format.
	// NormalizeFlags folds them into Flags and clears them.
	LegacySecurityBuild       *bool `json:"-"`
	LegacySecurityPlaceBreak  *bool `json:"-"`
	LegacySecurityInteract    *bool `json:"-"`
	LegacySecurityKillPassive *bool `json:"-"`
}

// Entry pairs a claim with its owner for index and query results.
type Entry struct {
	Owner string
	Claim *Claim
}

// ResolveFlags normalizes every stored flag shape down to the three
// effective allow booleans. Priority: explicit allow_* keys, then
// inverted security_* keys inside flags, then the deprecated top-level
// security_* keys. A claim with no flag data at all resolves to
// all-blocked; that asymmetry against the fail-open spawn defaults is
// deliberate.
func ResolveFlags(c *Claim) (build, interact, killPassive bool) {
	if c == nil {
		return false, false, false
	}
	f := c.Flags

	secBuild := boolAt(f.SecurityBuild, boolAt(f.SecurityPlaceBreak, true))
	secInteract := boolAt(f.SecurityInteract, true)
	secKill := boolAt(f.SecurityKillPassive, true)

	// Oldest saves kept the security keys on the claim itself.
	if c.LegacySecurityBuild != nil {
		secBuild = *c.LegacySecurityBuild
	}
	if c.LegacySecurityPlaceBreak != nil {
		secBuild = *c.LegacySecurityPlaceBreak
	}
	if c.LegacySecurityInteract != nil {
		secInteract = *c.LegacySecurityInteract
	}
	if c.LegacySecurityKillPassive != nil {
		secKill = *c.LegacySecurityKillPassive
	}

	build = boolAt(f.AllowBuild, !secBuild)
	interact = boolAt(f.AllowInteract, !secInteract)
	killPassive = boolAt(f.AllowKillPassive, !secKill)
	return build, interact, killPassive
}

// NormalizeFlags rewrites Flags so every allow_* key is explicit and
// the security_* mirror matches it, dropping alias and legacy keys.
// Idempotent.
func NormalizeFlags(c *Claim) {
	build, interact, kill := ResolveFlags(c)
	c.Flags = Flags{
		AllowBuild:          boolPtr(build),
		AllowInteract:       boolPtr(interact),
		AllowKillPassive:    boolPtr(kill),
		SecurityBuild:       boolPtr(!build),
		SecurityInteract:    boolPtr(!interact),
		SecurityKillPassive: boolPtr(!kill),
	}
	c.LegacySecurityBuild = nil
	c.LegacySecurityPlaceBreak = nil
	c.LegacySecurityInteract = nil
	c.LegacySecurityKillPassive = nil
}

// NormalizeMates coerces the mates field to a {name: rank} map with
// ranks clamped to {0,1}. Legacy saves stored a plain name list; those
// arrive here as rank-0 entries via MatesFromList. Idempotent.
func NormalizeMates(c *Claim) map[string]int {
	out := make(map[string]int, len(c.Mates))
	for name, rank := range c.Mates {
		nm := strings.TrimSpace(name)
		if nm == "" {
			continue
		}
		out[nm] = clampRank(rank)
	}
	c.Mates = out
	return out
}

// MatesFromList converts the legacy list form to the map form, every
// entry a rank-0 member.
func MatesFromList(names []string) map[string]int {
	out := make(map[string]int, len(names))
	for _, n := range names {
		nm := strings.TrimSpace(n)
		if nm == "" {
			continue
		}
		out[nm] = RankMember
	}
	return out
}

// RankOf returns the mate's rank, or -1 when the name is not a mate.
// Name comparison is case-insensitive like everywhere else.
func RankOf(c *Claim, name string) int {
	if c == nil {
		return -1
	}
	for k, v := range c.Mates {
		if strings.EqualFold(k, name) {
			return clampRank(v)
		}
	}
	return -1
}

// IsMate reports whether name is a mate at any rank.
func IsMate(c *Claim, name string) bool {
	return RankOf(c, name) >= 0
}

// Contains reports whether the ground point (x,z) in dim falls inside
// this claim's circle.
func (c *Claim) Contains(x, z int, dim string) bool {
	if c == nil || c.Dim != NormalizeDim(dim) {
		return false
	}
	dx, dz := x-c.X, z-c.Z
	return dx*dx+dz*dz <= c.Radius*c.Radius
}

func clampRank(r int) int {
	if r >= RankManager {
		return RankManager
	}
	return RankMember
}

func boolAt(p *bool, def bool) bool {
	if p != nil {
		return *p
	}
	return def
}

func boolPtr(v bool) *bool { return &v }
