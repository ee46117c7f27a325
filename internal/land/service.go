// Package land is the façade over the claim store, spatial index,
// policy engine and spacing validator. One mutex covers every call:
// a mutation bumps the version clock, notifies the save hook and emits
// an audit entry before the lock is released, so readers always see a
// consistent (store, version) pair.
package land

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"basekeeper.gg/internal/claim"
	"basekeeper.gg/internal/policy"
	"basekeeper.gg/internal/settings"
	"basekeeper.gg/internal/spacing"
	"basekeeper.gg/internal/spatial"
)

var (
	ErrNoPermission  = errors.New("no permission")
	ErrNotFound      = errors.New("base not found")
	ErrLimitExceeded = errors.New("base limit reached")
	ErrConflict      = errors.New("spacing conflict")
	ErrBadRequest    = errors.New("bad request")
)

// AuditEntry is one mutating operation as written to the audit log and
// the sqlite read-model.
type AuditEntry struct {
	Time    string `json:"time"`
	Version uint64 `json:"version"`
	Actor   string `json:"actor"`
	Op      string `json:"op"`
	Owner   string `json:"owner,omitempty"`
	ClaimID string `json:"claim_id,omitempty"`
	Dim     string `json:"dim,omitempty"`
	Pos     [3]int `json:"pos"`
	Detail  string `json:"detail,omitempty"`
}

// AuditSink receives audit entries. Sinks must not block; the sqlite
// indexer drops on backpressure rather than stalling the service.
type AuditSink interface {
	WriteAudit(AuditEntry) error
}

// SaveHook is called under the service lock after every successful
// mutation, with the full claim set and the new version.
type SaveHook func(entries []claim.Entry, version uint64) error

type Service struct {
	mu sync.Mutex

	store  *claim.Store
	index  *spatial.Index
	engine *policy.Engine
	val    *spacing.Validator

	view  func() settings.View
	save  SaveHook
	sinks []AuditSink

	logger *log.Logger
	now    func() time.Time
}

// NewService wires the collaborators around one store. view supplies
// the current merged settings; ticks drives the index rebuild debounce.
func NewService(store *claim.Store, ticks spatial.TickSource, view func() settings.View, logger *log.Logger) *Service {
	idx := spatial.NewIndex(store, ticks)
	return &Service{
		store:  store,
		index:  idx,
		engine: policy.NewEngine(idx),
		val:    spacing.NewValidator(store),
		view:   view,
		logger: logger,
		now:    time.Now,
	}
}

func (s *Service) SetSaveHook(h SaveHook) { s.save = h }
func (s *Service) AddAuditSink(a AuditSink) { s.sinks = append(s.sinks, a) }

func (s *Service) Version() uint64 {
	return s.store.Clock().Current()
}

// committed runs after a successful mutation, still under the lock.
func (s *Service) committed(actor, op, owner, id, dim string, pos [3]int, detail string) {
	v := s.store.Clock().Current()
	if s.save != nil {
		if err := s.save(s.store.All(), v); err != nil && s.logger != nil {
			s.logger.Printf("save after %s failed: %v", op, err)
		}
	}
	e := AuditEntry{
		Time:    s.now().UTC().Format(time.RFC3339Nano),
		Version: v,
		Actor:   actor,
		Op:      op,
		Owner:   owner,
		ClaimID: id,
		Dim:     dim,
		Pos:     pos,
		Detail:  detail,
	}
	for _, sink := range s.sinks {
		if err := sink.WriteAudit(e); err != nil && s.logger != nil {
			s.logger.Printf("audit %s failed: %v", op, err)
		}
	}
}

func selfOrAdmin(v settings.View, actor, owner string) bool {
	return strings.EqualFold(actor, owner) || v.IsAdmin(actor)
}

func manages(v settings.View, actor, owner string, c *claim.Claim) bool {
	return v.IsAdmin(actor) || policy.CanManage(owner, actor, c)
}

// radiusCap is the per-base radius ceiling: the first base gets the
// large cap, every later base the small one.
func radiusCap(v settings.View, existing int) int {
	r := v.Rules()
	if existing == 0 {
		return r.FirstBaseRadiusCap
	}
	return r.OtherBaseRadiusCap
}

// CreateBase claims a new circle for owner centered at (x,z). A
// non-positive radius asks for the largest feasible one. Admins bypass
// the count cap and the spacing walk but still respect the radius cap.
// On a spacing failure the offending bases come back with ErrConflict.
func (s *Service) CreateBase(actor, owner string, x, y, z, radius int, dim string) (*claim.Claim, []spacing.Conflict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.view()
	if !selfOrAdmin(v, actor, owner) {
		return nil, nil, ErrNoPermission
	}
	admin := v.IsAdmin(actor)
	existing := s.store.CountFor(owner)
	if !admin && existing >= v.Rules().MaxBases {
		return nil, nil, ErrLimitExceeded
	}

	rcap := radiusCap(v, existing)
	if radius > rcap {
		return nil, nil, fmt.Errorf("%w: radius %d above cap %d", ErrBadRequest, radius, rcap)
	}
	if !admin {
		feasible := s.val.MaxFeasibleNewRadius(v, owner, x, z, dim, rcap)
		if radius <= 0 {
			radius = feasible
		}
		if radius == 0 || radius > feasible {
			probe := radius
			if probe == 0 {
				probe = spacing.Step
			}
			return nil, s.val.Conflicts(v, owner, x, z, probe, dim, nil), ErrConflict
		}
	} else if radius <= 0 {
		radius = rcap
	}

	c := s.store.Create(owner, x, y, z, radius, dim, v.Rules().MinDistBetweenBases)
	s.committed(actor, "create_base", owner, c.ID, c.Dim, [3]int{x, y, z}, fmt.Sprintf("radius=%d", radius))
	return c, nil, nil
}

// DeleteBase removes a base. Owner or admin only; mates cannot delete.
func (s *Service) DeleteBase(actor, owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.view()
	if !selfOrAdmin(v, actor, owner) {
		return ErrNoPermission
	}
	c := s.store.Get(owner, id)
	if c == nil {
		return ErrNotFound
	}
	s.store.Delete(owner, id)
	s.committed(actor, "delete_base", owner, id, c.Dim, [3]int{c.X, c.Y, c.Z}, "")
	return nil
}

func (s *Service) RenameBase(actor, owner, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrBadRequest)
	}
	v := s.view()
	c := s.store.Get(owner, id)
	if c == nil {
		return ErrNotFound
	}
	if !manages(v, actor, owner, c) {
		return ErrNoPermission
	}
	s.store.Rename(owner, id, name)
	s.committed(actor, "rename_base", owner, id, c.Dim, [3]int{c.X, c.Y, c.Z}, "name="+name)
	return nil
}

// ResizeBase grows or shrinks a base. Growth is limited by the radius
// cap and the spacing walk from the current radius; shrinking is always
// allowed down to one step.
func (s *Service) ResizeBase(actor, owner, id string, radius int) ([]spacing.Conflict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.view()
	c := s.store.Get(owner, id)
	if c == nil {
		return nil, ErrNotFound
	}
	if !manages(v, actor, owner, c) {
		return nil, ErrNoPermission
	}
	if radius < spacing.Step {
		return nil, fmt.Errorf("%w: radius %d below minimum %d", ErrBadRequest, radius, spacing.Step)
	}

	if radius > c.Radius && !v.IsAdmin(actor) {
		rcap := v.Rules().OtherBaseRadiusCap
		if s.store.CountFor(owner) == 1 {
			rcap = v.Rules().FirstBaseRadiusCap
		}
		feasible := s.val.MaxFeasibleResize(v, owner, c, rcap)
		if radius > feasible {
			ignore := [2]int{c.X, c.Z}
			return s.val.Conflicts(v, owner, c.X, c.Z, radius, c.Dim, &ignore), ErrConflict
		}
	}
	s.store.Resize(owner, id, radius)
	s.committed(actor, "resize_base", owner, id, c.Dim, [3]int{c.X, c.Y, c.Z}, fmt.Sprintf("radius=%d", radius))
	return nil, nil
}

// MoveBase recenters a base, keeping its radius. The new spot must pass
// the same spacing rules as a fresh claim of that radius (own other
// bases still conflict; the moved base's old center does not).
func (s *Service) MoveBase(actor, owner, id string, x, y, z int) ([]spacing.Conflict, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.view()
	c := s.store.Get(owner, id)
	if c == nil {
		return nil, ErrNotFound
	}
	if !selfOrAdmin(v, actor, owner) {
		return nil, ErrNoPermission
	}
	if !v.IsAdmin(actor) {
		if spacing.SpawnBlocked(v, x, z, c.Radius, c.Dim) {
			return nil, fmt.Errorf("%w: too close to spawn", ErrConflict)
		}
		ignore := [2]int{c.X, c.Z}
		if conflicts := s.val.Conflicts(v, owner, x, z, c.Radius, c.Dim, &ignore); len(conflicts) > 0 {
			return conflicts, ErrConflict
		}
	}
	s.store.Move(owner, id, x, y, z)
	s.committed(actor, "move_base", owner, id, c.Dim, [3]int{x, y, z}, "")
	return nil, nil
}

// SetFlags applies a partial permission update; nil fields keep their
// prior value.
func (s *Service) SetFlags(actor, owner, id string, build, interact, killPassive *bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.view()
	c := s.store.Get(owner, id)
	if c == nil {
		return ErrNotFound
	}
	if !manages(v, actor, owner, c) {
		return ErrNoPermission
	}
	s.store.SetFlags(c, build, interact, killPassive)
	b, i, k := claim.ResolveFlags(c)
	s.committed(actor, "set_flags", owner, id, c.Dim, [3]int{c.X, c.Y, c.Z},
		fmt.Sprintf("build=%t interact=%t kill_passive=%t", b, i, k))
	return nil
}

func (s *Service) AddMate(actor, owner, id, name string, rank int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.view()
	c := s.store.Get(owner, id)
	if c == nil {
		return ErrNotFound
	}
	if !manages(v, actor, owner, c) {
		return ErrNoPermission
	}
	if !s.store.AddMate(c, name, rank) {
		return fmt.Errorf("%w: %q is already a mate or invalid", ErrConflict, name)
	}
	s.committed(actor, "add_mate", owner, id, c.Dim, [3]int{c.X, c.Y, c.Z},
		fmt.Sprintf("mate=%s rank=%d", name, rank))
	return nil
}

func (s *Service) RemoveMate(actor, owner, id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.view()
	c := s.store.Get(owner, id)
	if c == nil {
		return ErrNotFound
	}
	if !manages(v, actor, owner, c) {
		return ErrNoPermission
	}
	if !s.store.RemoveMate(c, name) {
		return fmt.Errorf("%w: %q is not a mate", ErrNotFound, name)
	}
	s.committed(actor, "remove_mate", owner, id, c.Dim, [3]int{c.X, c.Y, c.Z}, "mate="+name)
	return nil
}

func (s *Service) SetRank(actor, owner, id, name string, rank int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.view()
	c := s.store.Get(owner, id)
	if c == nil {
		return ErrNotFound
	}
	if !manages(v, actor, owner, c) {
		return ErrNoPermission
	}
	if !s.store.SetRank(c, name, rank) {
		return fmt.Errorf("%w: %q is not a mate", ErrNotFound, name)
	}
	s.committed(actor, "set_rank", owner, id, c.Dim, [3]int{c.X, c.Y, c.Z},
		fmt.Sprintf("mate=%s rank=%d", name, rank))
	return nil
}

// Bases lists every claim the viewer owns or is a mate on.
func (s *Service) Bases(viewer string) []claim.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.BasesForViewer(viewer)
}

// OwnerAt resolves the claim covering (x,z) in dim, nearest center
// winning on overlap.
func (s *Service) OwnerAt(x, z int, dim string) (string, *claim.Claim) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.OwnerAt(s.view(), x, z, dim)
}

// CanAct answers the hot-path permission question for one block
// position.
func (s *Service) CanAct(actingName string, x, y, z int, dim string, action policy.Action) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.CanAct(s.view(), actingName, x, y, z, dim, action)
}

// CanDamage gates attacks on an entity at (x,y,z): hostiles and players
// are never protected.
func (s *Service) CanDamage(actingName string, victim policy.Entity, x, y, z int, dim string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.CanDamage(s.view(), actingName, victim, x, y, z, dim)
}

// CheckSpot is the spacing preview for a proposed claim: the diagnostic
// report plus the largest radius that would actually succeed here.
func (s *Service) CheckSpot(actor string, x, z, radius int, dim string) (spacing.CheckReport, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.view()
	rcap := radiusCap(v, s.store.CountFor(actor))
	rep := s.val.FullCheck(v, actor, x, z, radius, dim, true)
	feasible := s.val.MaxFeasibleNewRadius(v, actor, x, z, dim, rcap)
	return rep, feasible
}

// EnsureDefaults stamps missing per-claim defaults across the store,
// persisting once if anything changed. Runs at load time.
func (s *Service) EnsureDefaults() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := s.store.EnsureDefaults(s.view().Rules().MinDistBetweenBases)
	if changed {
		s.committed("server", "ensure_defaults", "", "", "", [3]int{}, "")
	}
	return changed
}
