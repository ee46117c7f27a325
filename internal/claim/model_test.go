package claim

import (
	"reflect"
	"testing"
)

func bptr(v bool) *bool { return &v }

func TestNormalizeDim(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{"overworld", DimOverworld},
		{"Overworld", DimOverworld},
		{"minecraft:the_nether", DimNether},
		{"Nether", DimNether},
		{"hell", DimNether},
		{"the_end", DimEnd},
		{"TheEnd", DimEnd},
		{"", DimOverworld},
		{"somewhere", DimOverworld},
	} {
		if got := NormalizeDim(tc.in); got != tc.want {
			t.Errorf("NormalizeDim(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestResolveFlagsPriority(t *testing.T) {
	// Explicit allow_* wins over everything.
	c := &Claim{Flags: Flags{
		AllowBuild:    bptr(true),
		SecurityBuild: bptr(true), // stale mirror; allow_* is authoritative
	}}
	if b, _, _ := ResolveFlags(c); !b {
		t.Fatal("explicit allow_build should win over security mirror")
	}

	// security_* inside flags, inverted.
	c = &Claim{Flags: Flags{SecurityInteract: bptr(true)}}
	if _, i, _ := ResolveFlags(c); i {
		t.Fatal("security_interact=true should resolve to interact blocked")
	}

	// security_place_break is the build alias.
	c = &Claim{Flags: Flags{SecurityPlaceBreak: bptr(true)}}
	if b, _, _ := ResolveFlags(c); b {
		t.Fatal("security_place_break=true should block build")
	}

	// legacy top-level keys apply when flags carry nothing explicit.
	c = &Claim{LegacySecurityKillPassive: bptr(true)}
	if _, _, k := ResolveFlags(c); k {
		t.Fatal("legacy top-level security_kill_passive should block")
	}

	// No flag data at all: locked, not open.
	c = &Claim{}
	b, i, k := ResolveFlags(c)
	if b || i || k {
		t.Fatalf("empty claim resolves to (%v,%v,%v), want all false", b, i, k)
	}

	if b, i, k := ResolveFlags(nil); b || i || k {
		t.Fatal("nil claim must resolve to all blocked")
	}
}

func TestNormalizeFlagsIdempotent(t *testing.T) {
	c := &Claim{
		Flags:               Flags{SecurityPlaceBreak: bptr(true)},
		LegacySecurityBuild: bptr(false),
	}
	NormalizeFlags(c)
	first := c.Flags
	NormalizeFlags(c)
	if !reflect.DeepEqual(derefFlags(first), derefFlags(c.Flags)) {
		t.Fatalf("second normalize changed flags: %+v vs %+v", derefFlags(first), derefFlags(c.Flags))
	}
	if c.Flags.SecurityPlaceBreak != nil {
		t.Fatal("alias key should be dropped after normalize")
	}
	if c.LegacySecurityBuild != nil {
		t.Fatal("legacy key should be cleared after normalize")
	}
	if b, _, _ := ResolveFlags(c); b {
		t.Fatal("security_place_break=true should normalize to build blocked")
	}
}

func derefFlags(f Flags) [6]bool {
	get := func(p *bool) bool { return p != nil && *p }
	return [6]bool{
		get(f.AllowBuild), get(f.AllowInteract), get(f.AllowKillPassive),
		get(f.SecurityBuild), get(f.SecurityInteract), get(f.SecurityKillPassive),
	}
}

func TestNormalizeMatesIdempotent(t *testing.T) {
	c := &Claim{Mates: MatesFromList([]string{"Steve", "alex", "  ", ""})}
	once := NormalizeMates(c)
	twice := NormalizeMates(c)
	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("normalize not idempotent: %v vs %v", once, twice)
	}
	want := map[string]int{"Steve": 0, "alex": 0}
	if !reflect.DeepEqual(twice, want) {
		t.Fatalf("mates = %v, want %v", twice, want)
	}

	// Map form with out-of-range ranks clamps to {0,1}.
	c = &Claim{Mates: map[string]int{"boss": 7, "kid": -3}}
	got := NormalizeMates(c)
	if got["boss"] != RankManager || got["kid"] != RankMember {
		t.Fatalf("ranks not clamped: %v", got)
	}
}

func TestRankOfCaseInsensitive(t *testing.T) {
	c := &Claim{Mates: map[string]int{"Carol": RankManager}}
	if RankOf(c, "carol") != RankManager {
		t.Fatal("rank lookup should fold case")
	}
	if RankOf(c, "dave") != -1 {
		t.Fatal("non-mate should report -1")
	}
	if !IsMate(c, "CAROL") || IsMate(c, "dave") {
		t.Fatal("IsMate mismatch")
	}
}

func TestClaimContains(t *testing.T) {
	c := &Claim{X: 0, Z: 0, Radius: 100, Dim: DimOverworld}
	if !c.Contains(100, 0, "overworld") {
		t.Fatal("boundary point should be inside")
	}
	if c.Contains(101, 0, "overworld") {
		t.Fatal("outside point reported inside")
	}
	if c.Contains(0, 0, "nether") {
		t.Fatal("dimension mismatch should never contain")
	}
}
