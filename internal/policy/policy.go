// Package policy answers "who owns this point and may this actor act
// here". It reads the claim store through the spatial index and merges
// claim flags, trust, and the virtual spawn overlay into one decision.
package policy

import (
	"strings"

	"basekeeper.gg/internal/claim"
	"basekeeper.gg/internal/geo"
	"basekeeper.gg/internal/settings"
	"basekeeper.gg/internal/spatial"
)

// Action is one of the three gated action classes.
type Action string

const (
	ActionBuild       Action = "build"
	ActionInteract    Action = "interact"
	ActionKillPassive Action = "kill_passive"
)

// Actor is the engine-side adapter for a player: one canonical method
// per capability, so host forks plug in a single implementation
// instead of attribute probing.
type Actor interface {
	Name() string
	Position() (x, y, z int)
	Dimension() string
}

// Engine evaluates ownership and permissions. It never mutates claims.
type Engine struct {
	index *spatial.Index
}

func NewEngine(index *spatial.Index) *Engine {
	return &Engine{index: index}
}

// OwnerAt resolves the claim covering (x,z) in dim. Candidates come
// from the grid; only confirmed circle containment counts. When claims
// overlap, the one whose center is nearest to the point wins; exact
// distance ties break on (owner, id) so the answer never depends on
// map iteration order.
func (e *Engine) OwnerAt(v settings.View, x, z int, dim string) (string, *claim.Claim) {
	dk := claim.NormalizeDim(dim)
	e.index.Ensure(v.Rules().IndexCellSize)

	var (
		bestOwner string
		bestClaim *claim.Claim
		bestDist  float64
	)
	for _, cand := range e.index.QueryPoint(x, z) {
		c := cand.Claim
		if c.Dim != dk {
			continue
		}
		d := geo.Dist2D(float64(x), float64(z), float64(c.X), float64(c.Z))
		if d > float64(c.Radius) {
			continue
		}
		if bestClaim == nil || d < bestDist ||
			(d == bestDist && lessEntry(cand.Owner, c.ID, bestOwner, bestClaim.ID)) {
			bestOwner, bestClaim, bestDist = cand.Owner, c, d
		}
	}
	return bestOwner, bestClaim
}

func lessEntry(ownerA, idA, ownerB, idB string) bool {
	if ownerA != ownerB {
		return ownerA < ownerB
	}
	return idA < idB
}

// Trusted is the interaction-trust predicate: admins, the owner, and
// mates of any rank all bypass claim flags. Not to be confused with
// CanManage, which is stricter.
func (e *Engine) Trusted(v settings.View, actingName, owner string, c *claim.Claim) bool {
	if owner == "" || c == nil {
		return false
	}
	if v.IsAdmin(actingName) {
		return true
	}
	if strings.EqualFold(actingName, owner) {
		return true
	}
	return claim.IsMate(c, actingName)
}

// CanManage is the management capability: the owner or a rank-1 mate.
// Rank-0 mates can use a base but not administer it.
func CanManage(owner, viewer string, c *claim.Claim) bool {
	if c == nil {
		return false
	}
	if strings.EqualFold(viewer, owner) {
		return true
	}
	return claim.RankOf(c, viewer) == claim.RankManager
}

// FreeAreaAt returns the first configured free-build box containing
// (x,y,z) in dim, or nil.
func FreeAreaAt(v settings.View, x, y, z int, dim string) *settings.FreeArea {
	for _, area := range v.FreeAreas(dim) {
		a := area
		if geo.BoxContains(x, y, z, a.A, a.B) {
			return &a
		}
	}
	return nil
}

// CanAct authorizes one action at a world position.
//
// Order: a real claim decides first (trust, then flags); otherwise a
// free-build box always allows; otherwise the virtual spawn claim
// applies its security bits inside its radius; otherwise the world is
// unrestricted. With nothing configured the system fails open — a
// misconfigured server must not block building everywhere.
func (e *Engine) CanAct(v settings.View, actingName string, x, y, z int, dim string, action Action) bool {
	dk := claim.NormalizeDim(dim)

	owner, c := e.OwnerAt(v, x, z, dk)
	if c != nil {
		if e.Trusted(v, actingName, owner, c) {
			return true
		}
		build, interact, kill := claim.ResolveFlags(c)
		switch action {
		case ActionBuild:
			return build
		case ActionInteract:
			return interact
		case ActionKillPassive:
			return kill
		default:
			return false
		}
	}

	if FreeAreaAt(v, x, y, z, dk) != nil {
		return true
	}

	return e.spawnAllows(v, actingName, x, z, dk, action)
}

// spawnAllows evaluates the virtual spawn claim for a point with no
// real claim over it.
func (e *Engine) spawnAllows(v settings.View, actingName string, x, z int, dk string, action Action) bool {
	if v.IsAdmin(actingName) {
		return true
	}
	cfg := v.SpawnFor(dk)
	if !cfg.OK || cfg.Radius <= 0 {
		return true
	}
	if !geo.CircleContains(cfg.X, cfg.Z, cfg.Radius, x, z) {
		return true // wilderness
	}
	secBuild, secInteract, secKill := v.SpawnSecurity(dk)
	switch action {
	case ActionBuild:
		return !secBuild
	case ActionInteract:
		return !secInteract
	case ActionKillPassive:
		return !secKill
	default:
		return true
	}
}

// CanActFor is the Actor-adapter convenience used by event handlers.
func (e *Engine) CanActFor(v settings.View, a Actor, action Action) bool {
	x, y, z := a.Position()
	return e.CanAct(v, a.Name(), x, y, z, a.Dimension(), action)
}
