package land

import (
	"errors"
	"testing"

	"basekeeper.gg/internal/claim"
	"basekeeper.gg/internal/policy"
	"basekeeper.gg/internal/settings"
)

type recordingSink struct {
	entries []AuditEntry
}

func (r *recordingSink) WriteAudit(e AuditEntry) error {
	r.entries = append(r.entries, e)
	return nil
}

func (r *recordingSink) lastOp() string {
	if len(r.entries) == 0 {
		return ""
	}
	return r.entries[len(r.entries)-1].Op
}

func newTestService(view settings.View) (*Service, *recordingSink) {
	tick := uint64(0)
	store := claim.NewStore(&claim.VersionClock{})
	svc := NewService(store, func() uint64 { tick++; return tick }, func() settings.View { return view }, nil)
	sink := &recordingSink{}
	svc.AddAuditSink(sink)
	return svc, sink
}

func baseView() settings.View {
	return settings.View{
		"lc_min_distance_between_bases": 50,
		"landclaim_admins":              []any{"root"},
	}
}

func TestCreateBaseDefaultsAndCap(t *testing.T) {
	svc, sink := newTestService(baseView())

	c, conflicts, err := svc.CreateBase("alice", "alice", 0, 64, 0, 0, claim.DimOverworld)
	if err != nil {
		t.Fatalf("create: %v (%v)", err, conflicts)
	}
	// First base with no neighbors grows to the first-base cap.
	if c.Radius != 500 {
		t.Fatalf("radius = %d, want first-base cap 500", c.Radius)
	}
	if c.ID != "base_1" || c.BufferRule != 50 {
		t.Fatalf("claim = %+v", c)
	}
	if b, _, _ := claim.ResolveFlags(c); b {
		t.Fatal("new base must start locked")
	}
	if sink.lastOp() != "create_base" {
		t.Fatalf("audit op = %q", sink.lastOp())
	}

	// Later bases use the smaller cap.
	c2, _, err := svc.CreateBase("alice", "alice", 5000, 64, 0, 0, claim.DimOverworld)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if c2.Radius != 250 {
		t.Fatalf("second radius = %d, want 250", c2.Radius)
	}
}

func TestCreateBaseLimit(t *testing.T) {
	svc, _ := newTestService(baseView())
	spots := [][2]int{{0, 0}, {5000, 0}, {10000, 0}}
	for _, p := range spots {
		if _, _, err := svc.CreateBase("alice", "alice", p[0], 64, p[1], 50, claim.DimOverworld); err != nil {
			t.Fatalf("create at %v: %v", p, err)
		}
	}
	_, _, err := svc.CreateBase("alice", "alice", 15000, 64, 0, 50, claim.DimOverworld)
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("4th base err = %v, want ErrLimitExceeded", err)
	}
	// Admins are exempt from the count cap.
	if _, _, err := svc.CreateBase("root", "alice", 15000, 64, 0, 50, claim.DimOverworld); err != nil {
		t.Fatalf("admin create: %v", err)
	}
}

func TestCreateBaseConflictReturnsOffenders(t *testing.T) {
	svc, _ := newTestService(baseView())
	if _, _, err := svc.CreateBase("alice", "alice", 0, 64, 0, 100, claim.DimOverworld); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, conflicts, err := svc.CreateBase("bob", "bob", 150, 64, 0, 50, claim.DimOverworld)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if len(conflicts) != 1 || conflicts[0].Owner != "alice" {
		t.Fatalf("conflicts = %v", conflicts)
	}
}

func TestCreateBaseStrangerDenied(t *testing.T) {
	svc, sink := newTestService(baseView())
	_, _, err := svc.CreateBase("mallory", "alice", 0, 64, 0, 50, claim.DimOverworld)
	if !errors.Is(err, ErrNoPermission) {
		t.Fatalf("err = %v, want ErrNoPermission", err)
	}
	if len(sink.entries) != 0 {
		t.Fatal("denied op must not audit")
	}
}

func TestDeleteBase(t *testing.T) {
	svc, sink := newTestService(baseView())
	c, _, err := svc.CreateBase("alice", "alice", 0, 64, 0, 50, claim.DimOverworld)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	// A rank-1 mate manages but does not own; delete stays owner-only.
	if err := svc.AddMate("alice", "alice", c.ID, "bob", claim.RankManager); err != nil {
		t.Fatalf("add mate: %v", err)
	}
	if err := svc.DeleteBase("bob", "alice", c.ID); !errors.Is(err, ErrNoPermission) {
		t.Fatalf("mate delete err = %v, want ErrNoPermission", err)
	}
	if err := svc.DeleteBase("alice", "alice", c.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if sink.lastOp() != "delete_base" {
		t.Fatalf("audit op = %q", sink.lastOp())
	}
	if err := svc.DeleteBase("alice", "alice", c.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete err = %v, want ErrNotFound", err)
	}
}

func TestResizeBounds(t *testing.T) {
	svc, _ := newTestService(baseView())
	a, _, err := svc.CreateBase("alice", "alice", 0, 64, 0, 100, claim.DimOverworld)
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	if _, _, err := svc.CreateBase("bob", "bob", 500, 64, 0, 100, claim.DimOverworld); err != nil {
		t.Fatalf("create bob: %v", err)
	}

	// Growth to 350 needs exactly the 500 blocks available; 400 does not fit.
	if _, err := svc.ResizeBase("alice", "alice", a.ID, 350); err != nil {
		t.Fatalf("grow to 350: %v", err)
	}
	conflicts, err := svc.ResizeBase("alice", "alice", a.ID, 400)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("grow to 400 err = %v, want ErrConflict", err)
	}
	if len(conflicts) != 1 || conflicts[0].Owner != "bob" {
		t.Fatalf("conflicts = %v", conflicts)
	}
	// Shrinking never needs a spacing walk.
	if _, err := svc.ResizeBase("alice", "alice", a.ID, 50); err != nil {
		t.Fatalf("shrink: %v", err)
	}
	if _, err := svc.ResizeBase("alice", "alice", a.ID, 10); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("below minimum err = %v, want ErrBadRequest", err)
	}
}

func TestMoveBaseChecksNewSpot(t *testing.T) {
	svc, _ := newTestService(baseView())
	a, _, err := svc.CreateBase("alice", "alice", 0, 64, 0, 100, claim.DimOverworld)
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	if _, _, err := svc.CreateBase("bob", "bob", 1000, 64, 0, 100, claim.DimOverworld); err != nil {
		t.Fatalf("create bob: %v", err)
	}

	if _, err := svc.MoveBase("alice", "alice", a.ID, 900, 64, 0); !errors.Is(err, ErrConflict) {
		t.Fatalf("move next to bob err = %v, want ErrConflict", err)
	}
	if _, err := svc.MoveBase("alice", "alice", a.ID, -2000, 64, 0); err != nil {
		t.Fatalf("move to open ground: %v", err)
	}
	got, _ := svc.OwnerAt(-2000, 0, claim.DimOverworld)
	if got != "alice" {
		t.Fatalf("owner at new center = %q", got)
	}
}

func TestMateManagementPermissions(t *testing.T) {
	svc, _ := newTestService(baseView())
	c, _, err := svc.CreateBase("alice", "alice", 0, 64, 0, 50, claim.DimOverworld)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := svc.AddMate("bob", "alice", c.ID, "carol", claim.RankMember); !errors.Is(err, ErrNoPermission) {
		t.Fatalf("stranger add err = %v", err)
	}
	if err := svc.AddMate("alice", "alice", c.ID, "bob", claim.RankManager); err != nil {
		t.Fatalf("owner add: %v", err)
	}
	// Rank-1 mates manage the roster too.
	if err := svc.AddMate("BOB", "alice", c.ID, "carol", claim.RankMember); err != nil {
		t.Fatalf("manager add: %v", err)
	}
	// Rank-0 mates do not.
	if err := svc.AddMate("carol", "alice", c.ID, "dave", claim.RankMember); !errors.Is(err, ErrNoPermission) {
		t.Fatalf("member add err = %v", err)
	}
	if err := svc.AddMate("alice", "alice", c.ID, "CAROL", claim.RankMember); !errors.Is(err, ErrConflict) {
		t.Fatalf("duplicate add err = %v", err)
	}
	if err := svc.SetRank("alice", "alice", c.ID, "dave", claim.RankManager); !errors.Is(err, ErrNotFound) {
		t.Fatalf("set rank on non-mate err = %v", err)
	}
	if err := svc.RemoveMate("alice", "alice", c.ID, "carol"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := svc.RemoveMate("alice", "alice", c.ID, "carol"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double remove err = %v", err)
	}
}

func TestSetFlagsOpensBase(t *testing.T) {
	svc, _ := newTestService(baseView())
	c, _, err := svc.CreateBase("alice", "alice", 0, 64, 0, 100, claim.DimOverworld)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if svc.CanAct("bob", 10, 64, 10, claim.DimOverworld, policy.ActionBuild) {
		t.Fatal("stranger must not build in a locked base")
	}
	yes := true
	if err := svc.SetFlags("alice", "alice", c.ID, &yes, nil, nil); err != nil {
		t.Fatalf("set flags: %v", err)
	}
	if !svc.CanAct("bob", 10, 64, 10, claim.DimOverworld, policy.ActionBuild) {
		t.Fatal("allow_build=true must open building to strangers")
	}
	if svc.CanAct("bob", 10, 64, 10, claim.DimOverworld, policy.ActionInteract) {
		t.Fatal("interact must stay blocked")
	}
}

func TestSaveHookSeesEveryMutation(t *testing.T) {
	svc, _ := newTestService(baseView())
	var saves int
	var lastVersion uint64
	svc.SetSaveHook(func(entries []claim.Entry, version uint64) error {
		saves++
		lastVersion = version
		return nil
	})

	c, _, err := svc.CreateBase("alice", "alice", 0, 64, 0, 50, claim.DimOverworld)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.RenameBase("alice", "alice", c.ID, "home"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	if saves != 2 {
		t.Fatalf("saves = %d, want 2", saves)
	}
	if lastVersion != svc.Version() {
		t.Fatalf("hook version %d != service version %d", lastVersion, svc.Version())
	}
}

func TestCheckSpot(t *testing.T) {
	svc, _ := newTestService(baseView())
	if _, _, err := svc.CreateBase("alice", "alice", 0, 64, 0, 100, claim.DimOverworld); err != nil {
		t.Fatalf("seed: %v", err)
	}
	rep, feasible := svc.CheckSpot("bob", 400, 0, 100, claim.DimOverworld)
	// Edge gap 400-200=200, clear of the 50-block rule in force.
	if len(rep.Conflicts) != 0 {
		t.Fatalf("report conflicts = %v", rep.Conflicts)
	}
	// Feasibility walk: r=250 needs 400 (equal, ok), r=300 needs 450.
	if feasible != 250 {
		t.Fatalf("feasible = %d, want 250", feasible)
	}
}

type stubEntity struct {
	typeID string
	player bool
}

func (s stubEntity) TypeID() string     { return s.typeID }
func (s stubEntity) Families() []string { return nil }
func (s stubEntity) IsPlayer() bool     { return s.player }

func TestCanDamageInsideClaim(t *testing.T) {
	svc, _ := newTestService(baseView())
	if _, _, err := svc.CreateBase("alice", "alice", 0, 64, 0, 100, claim.DimOverworld); err != nil {
		t.Fatalf("create: %v", err)
	}
	cow := stubEntity{typeID: "minecraft:cow"}
	if svc.CanDamage("bob", cow, 10, 64, 10, claim.DimOverworld) {
		t.Fatal("passive mob in a locked claim is protected")
	}
	if !svc.CanDamage("bob", stubEntity{typeID: "minecraft:zombie"}, 10, 64, 10, claim.DimOverworld) {
		t.Fatal("hostiles are always fair game")
	}
	if !svc.CanDamage("alice", cow, 10, 64, 10, claim.DimOverworld) {
		t.Fatal("owner may cull their own livestock")
	}
}

func TestOwnerFlagAndMateScenario(t *testing.T) {
	svc, _ := newTestService(baseView())
	c, _, err := svc.CreateBase("alice", "alice", 100, 64, 100, 200, claim.DimOverworld)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Bob stands inside the circle; a fresh base is locked to him.
	if svc.CanAct("bob", 150, 64, 150, claim.DimOverworld, policy.ActionBuild) {
		t.Fatal("stranger build in fresh base")
	}
	if !svc.CanAct("alice", 150, 64, 150, claim.DimOverworld, policy.ActionBuild) {
		t.Fatal("owner must always build")
	}

	yes := true
	if err := svc.SetFlags("alice", "alice", c.ID, &yes, nil, nil); err != nil {
		t.Fatalf("set flags: %v", err)
	}
	if !svc.CanAct("bob", 150, 64, 150, claim.DimOverworld, policy.ActionBuild) {
		t.Fatal("allow_build=true must admit bob")
	}

	// Mates are trusted whatever the flags say.
	if err := svc.SetFlags("alice", "alice", c.ID, new(bool), nil, nil); err != nil {
		t.Fatalf("re-lock: %v", err)
	}
	if err := svc.AddMate("alice", "alice", c.ID, "carol", claim.RankMember); err != nil {
		t.Fatalf("add mate: %v", err)
	}
	if !svc.CanAct("carol", 150, 64, 150, claim.DimOverworld, policy.ActionBuild) {
		t.Fatal("rank-0 mate must build in a locked base")
	}
	if svc.CanAct("bob", 150, 64, 150, claim.DimOverworld, policy.ActionBuild) {
		t.Fatal("re-locking must shut bob out again")
	}
}

func TestEnsureDefaultsPersistsOnce(t *testing.T) {
	view := baseView()
	tick := uint64(0)
	store := claim.NewStore(&claim.VersionClock{})
	store.Put("alice", &claim.Claim{ID: "base_1", X: 0, Z: 0, Radius: 100, Dim: "overworld", BufferRule: -1})
	svc := NewService(store, func() uint64 { tick++; return tick }, func() settings.View { return view }, nil)

	var saves int
	svc.SetSaveHook(func([]claim.Entry, uint64) error { saves++; return nil })
	if !svc.EnsureDefaults() {
		t.Fatal("stale claim must report changed")
	}
	if saves != 1 {
		t.Fatalf("saves = %d, want 1", saves)
	}
	if svc.EnsureDefaults() {
		t.Fatal("second sweep must be a no-op")
	}
}
