package settings

import (
	"testing"
)

func TestMergePriority(t *testing.T) {
	base := map[string]any{"lc_max_bases": 3, "worldspawn": "0 64 0"}
	admin := map[string]any{"lc_max_bases": 5}
	runtime := map[string]any{"worldspawn": "100 70 100"}

	v := Merge(base, admin, runtime)
	if got := v.Int("lc_max_bases", 0); got != 5 {
		t.Fatalf("lc_max_bases = %d, want admin override 5", got)
	}
	if got := v.Str("worldspawn", ""); got != "100 70 100" {
		t.Fatalf("worldspawn = %q, want last source to win", got)
	}
	if base["worldspawn"] != "0 64 0" {
		t.Fatal("merge must not mutate its sources")
	}
}

func TestIntCoercion(t *testing.T) {
	v := View{"a": 7, "b": 7.9, "c": "7.5", "d": "junk", "e": nil, "f": int64(9)}
	for _, tc := range []struct {
		key  string
		want int
	}{
		{"a", 7}, {"b", 7}, {"c", 7}, {"d", 42}, {"e", 42}, {"missing", 42}, {"f", 9},
	} {
		if got := v.Int(tc.key, 42); got != tc.want {
			t.Errorf("Int(%q) = %d, want %d", tc.key, got, tc.want)
		}
	}
}

func TestBoolCoercion(t *testing.T) {
	v := View{"a": true, "b": "true", "c": 1, "d": "off", "e": 0.0}
	for _, tc := range []struct {
		key  string
		want bool
	}{
		{"a", true}, {"b", true}, {"c", true}, {"d", false}, {"e", false}, {"missing", false},
	} {
		if got := v.Bool(tc.key, false); got != tc.want {
			t.Errorf("Bool(%q) = %v, want %v", tc.key, got, tc.want)
		}
	}
}

func TestRulesDefaults(t *testing.T) {
	r := View{}.Rules()
	if r.FirstBaseRadiusCap != 500 || r.OtherBaseRadiusCap != 250 ||
		r.MinDistBetweenBases != 200 || r.MinDistFromSpawn != 300 ||
		r.MaxBases != 3 || r.IndexCellSize != 64 {
		t.Fatalf("defaults wrong: %+v", r)
	}
}

func TestSpawnForPerDimAndLegacy(t *testing.T) {
	v := View{
		"worldspawn":                      "0 64 0",
		"spawn_protection_radius":         100,
		"worldspawn_nether":               "10 64 10",
		"spawn_protection_radius_nether":  "50",
		"worldspawn_the_end":              "5 70 5",
		"spawn_protection_radius_the_end": 25,
	}

	ow := v.SpawnFor("overworld")
	if !ow.OK || ow.X != 0 || ow.Z != 0 || ow.Radius != 100 {
		t.Fatalf("overworld legacy fallback broken: %+v", ow)
	}
	ne := v.SpawnFor("minecraft:the_nether")
	if !ne.OK || ne.X != 10 || ne.Radius != 50 {
		t.Fatalf("nether cfg broken: %+v", ne)
	}
	end := v.SpawnFor("end")
	if !end.OK || end.X != 5 || end.Radius != 25 {
		t.Fatalf("the_end alias broken: %+v", end)
	}

	// A dimension with no keys has no spawn restriction.
	bare := View{"worldspawn": "0 64 0"}
	if cfg := bare.SpawnFor("nether"); cfg.OK {
		t.Fatal("nether must not inherit the overworld legacy spawn")
	}
}

func TestSpawnSecurity(t *testing.T) {
	v := View{
		"spawn_security_overworld_build":    true,
		"spawn_security_overworld_interact": "false",
	}
	b, i, k := v.SpawnSecurity("overworld")
	if !b || i || k {
		t.Fatalf("spawn security = (%v,%v,%v), want (true,false,false)", b, i, k)
	}
}

func TestFreeAreas(t *testing.T) {
	v := View{
		"spawn_free_areas": map[string]any{
			"overworld": []any{
				map[string]any{"name": "Market", "a": []any{0.0, 60.0, 0.0}, "b": []any{20.0, 80.0, 20.0}},
				map[string]any{"a": []any{100.0, 0.0, 100.0}, "b": []any{90.0, 50.0, 90.0}},
				map[string]any{"a": "garbage"},
			},
		},
		"spawn_free_area_nether": "0 0 0 16 128 16",
		"spawn_free_area_end":    "0 0 16 16",
	}

	ow := v.FreeAreas("overworld")
	if len(ow) != 2 {
		t.Fatalf("overworld areas = %d, want 2 (malformed ones dropped)", len(ow))
	}
	if ow[0].Name != "Market" || ow[1].Name != "Free Area 2" {
		t.Fatalf("names = %q,%q", ow[0].Name, ow[1].Name)
	}

	ne := v.FreeAreas("nether")
	if len(ne) != 1 || ne[0].B != [3]int{16, 128, 16} {
		t.Fatalf("nether legacy area broken: %+v", ne)
	}

	end := v.FreeAreas("end")
	if len(end) != 1 || end[0].A != [3]int{0, -64, 0} || end[0].B != [3]int{16, 320, 16} {
		t.Fatalf("2D legacy area should span full height: %+v", end)
	}
}

func TestAdmins(t *testing.T) {
	for _, tc := range []struct {
		name string
		v    View
	}{
		{"list", View{"admins": []any{"Root", " Ops "}}},
		{"map", View{"admins": map[string]any{"Root": 1, "Ops": 1}}},
		{"csv", View{"admins": "Root, Ops"}},
		{"plugin key", View{"landclaim_admins": []any{"Root", "Ops"}}},
		{"both stores", View{"admins": "Root", "landclaim_admins": "Ops"}},
	} {
		if !tc.v.IsAdmin("root") || !tc.v.IsAdmin("OPS") {
			t.Errorf("%s: admin membership should fold case", tc.name)
		}
		if tc.v.IsAdmin("guest") || tc.v.IsAdmin("") {
			t.Errorf("%s: non-admins leaked in", tc.name)
		}
	}
}
