// Package settings merges the admin store, the runtime document, and
// the on-disk rules file into one read-only view. Every getter degrades
// to a documented default; a missing key is never an error.
package settings

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"basekeeper.gg/internal/claim"
)

// View is a priority-merged settings document. Build one with Merge;
// later sources override earlier ones.
type View map[string]any

// Merge flattens the sources in order. Inputs are never mutated.
func Merge(sources ...map[string]any) View {
	out := make(View)
	for _, src := range sources {
		for k, v := range src {
			out[k] = v
		}
	}
	return out
}

// LoadYAML reads one settings source from a YAML file (rules.yaml).
func LoadYAML(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Int reads an integer the way old saves stored them: int, float, or
// numeric string all count.
func (v View) Int(key string, def int) int {
	raw, ok := v[key]
	if !ok || raw == nil {
		return def
	}
	switch t := raw.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case bool:
		if t {
			return 1
		}
		return 0
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return def
		}
		return int(f)
	default:
		return def
	}
}

// Bool reads a boolean; numeric and string forms are tolerated.
func (v View) Bool(key string, def bool) bool {
	raw, ok := v[key]
	if !ok || raw == nil {
		return def
	}
	switch t := raw.(type) {
	case bool:
		return t
	case int:
		return t != 0
	case int64:
		return t != 0
	case float64:
		return t != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off", "":
			return false
		}
		return def
	default:
		return def
	}
}

// Str reads a string value.
func (v View) Str(key, def string) string {
	raw, ok := v[key]
	if !ok || raw == nil {
		return def
	}
	if s, ok := raw.(string); ok {
		return s
	}
	return fmt.Sprint(raw)
}

// Rules are the admin-tunable claim rules with their defaults.
type Rules struct {
	FirstBaseRadiusCap  int
	OtherBaseRadiusCap  int
	MinDistBetweenBases int // also the buffer stamped onto new claims
	MinDistFromSpawn    int
	MaxBases            int
	IndexCellSize       int
}

func (v View) Rules() Rules {
	return Rules{
		FirstBaseRadiusCap:  v.Int("lc_first_base_radius_cap", 500),
		OtherBaseRadiusCap:  v.Int("lc_other_base_radius_cap", 250),
		MinDistBetweenBases: v.Int("lc_min_distance_between_bases", 200),
		MinDistFromSpawn:    v.Int("lc_min_distance_from_spawn", 300),
		MaxBases:            v.Int("lc_max_bases", 3),
		IndexCellSize:       v.Int("lc_index_cell_size", 64),
	}
}

// SpawnConfig is the per-dimension world spawn: center and protection
// radius. OK is false when the dimension has no spawn configured, which
// means no spawn restrictions apply there.
type SpawnConfig struct {
	X, Y, Z int
	Radius  int
	Label   string
	OK      bool
}

var spawnLabels = map[string]string{
	claim.DimOverworld: "Overworld Spawn",
	claim.DimNether:    "Nether Spawn",
	claim.DimEnd:       "The End Spawn",
}

// SpawnFor resolves worldspawn_<dim> / spawn_protection_radius_<dim>,
// falling back to the legacy un-suffixed keys for the overworld only.
// The end accepts the worldspawn_the_end spelling too.
func (v View) SpawnFor(dim string) SpawnConfig {
	dk := claim.NormalizeDim(dim)
	cfg := SpawnConfig{Label: spawnLabels[dk]}

	wsKeys := []string{"worldspawn_" + dk}
	radKeys := []string{"spawn_protection_radius_" + dk}
	switch dk {
	case claim.DimOverworld:
		wsKeys = append(wsKeys, "worldspawn")
		radKeys = append(radKeys, "spawn_protection_radius")
	case claim.DimEnd:
		wsKeys = append(wsKeys, "worldspawn_the_end")
		radKeys = append(radKeys, "spawn_protection_radius_the_end")
	}

	var ws string
	for _, k := range wsKeys {
		if s := strings.TrimSpace(v.Str(k, "")); s != "" {
			ws = s
			break
		}
	}
	if ws == "" {
		return cfg
	}
	parts := strings.Fields(ws)
	if len(parts) < 3 {
		return cfg
	}
	coords := make([]int, 3)
	for i := 0; i < 3; i++ {
		f, err := strconv.ParseFloat(parts[i], 64)
		if err != nil {
			return cfg
		}
		coords[i] = int(f)
	}
	cfg.X, cfg.Y, cfg.Z = coords[0], coords[1], coords[2]

	for _, k := range radKeys {
		if _, present := v[k]; present {
			cfg.Radius = v.Int(k, 0)
			break
		}
	}
	if cfg.Radius < 0 {
		cfg.Radius = 0
	}
	cfg.OK = true
	return cfg
}

// SpawnSecurity returns the three spawn security bits for a dimension.
// True means the action is blocked inside the spawn radius.
func (v View) SpawnSecurity(dim string) (build, interact, killPassive bool) {
	dk := claim.NormalizeDim(dim)
	build = v.Bool("spawn_security_"+dk+"_build", false)
	interact = v.Bool("spawn_security_"+dk+"_interact", false)
	killPassive = v.Bool("spawn_security_"+dk+"_kill_passive", false)
	return
}

// FreeArea is one named free-build box: inside it every action is
// allowed no matter what spawn security says.
type FreeArea struct {
	ID   string
	Name string
	A    [3]int
	B    [3]int
}

// FreeAreas collects the free-build boxes for a dimension from the
// structured spawn_free_areas document plus the legacy
// spawn_free_area_<dim> strings ("x1 y1 z1 x2 y2 z2", or "x1 z1 x2 z2"
// with the full build height assumed). Malformed entries are skipped,
// never fatal.
func (v View) FreeAreas(dim string) []FreeArea {
	dk := claim.NormalizeDim(dim)
	var out []FreeArea

	if root, ok := v["spawn_free_areas"].(map[string]any); ok {
		for rawDim, rawAreas := range root {
			if claim.NormalizeDim(rawDim) != dk {
				continue
			}
			areas, ok := rawAreas.([]any)
			if !ok {
				continue
			}
			for idx, it := range areas {
				entry, ok := it.(map[string]any)
				if !ok {
					continue
				}
				a, aok := intTriple(entry["a"])
				b, bok := intTriple(entry["b"])
				if !aok || !bok {
					continue
				}
				name := strings.TrimSpace(fmt.Sprint(entry["name"]))
				if name == "" || name == "<nil>" {
					name = fmt.Sprintf("Free Area %d", idx+1)
				}
				out = append(out, FreeArea{
					ID:   fmt.Sprintf("%s:%d", dk, idx),
					Name: name,
					A:    a,
					B:    b,
				})
			}
		}
	}

	if raw := strings.TrimSpace(v.Str("spawn_free_area_"+dk, "")); raw != "" {
		if area, ok := parseLegacyArea(raw); ok {
			area.ID = fmt.Sprintf("%s:legacy", dk)
			area.Name = fmt.Sprintf("Free Area %d", len(out)+1)
			out = append(out, area)
		}
	}
	return out
}

func parseLegacyArea(raw string) (FreeArea, bool) {
	parts := strings.Fields(strings.ReplaceAll(raw, ",", " "))
	nums := make([]int, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			continue
		}
		nums = append(nums, int(f))
	}
	switch {
	case len(nums) >= 6:
		return FreeArea{A: [3]int{nums[0], nums[1], nums[2]}, B: [3]int{nums[3], nums[4], nums[5]}}, true
	case len(nums) >= 4:
		// 2D form: assume the whole build height.
		return FreeArea{A: [3]int{nums[0], -64, nums[1]}, B: [3]int{nums[2], 320, nums[3]}}, true
	default:
		return FreeArea{}, false
	}
}

func intTriple(raw any) ([3]int, bool) {
	list, ok := raw.([]any)
	if !ok || len(list) < 3 {
		return [3]int{}, false
	}
	var out [3]int
	for i := 0; i < 3; i++ {
		switch t := list[i].(type) {
		case int:
			out[i] = t
		case int64:
			out[i] = int(t)
		case float64:
			out[i] = int(t)
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
			if err != nil {
				return [3]int{}, false
			}
			out[i] = int(f)
		default:
			return [3]int{}, false
		}
	}
	return out, true
}

// Admins normalizes the admin roster to a lowercase set. Saves have
// stored it as a list, a map keyed by name, or a comma-joined string,
// under either the plugin key or the admin-store key; both count.
func (v View) Admins() map[string]struct{} {
	out := make(map[string]struct{})
	add := func(s string) {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out[s] = struct{}{}
		}
	}
	for _, key := range []string{"admins", "landclaim_admins"} {
		switch t := v[key].(type) {
		case []any:
			for _, it := range t {
				add(fmt.Sprint(it))
			}
		case []string:
			for _, it := range t {
				add(it)
			}
		case map[string]any:
			for k := range t {
				add(k)
			}
		case string:
			for _, p := range strings.Split(t, ",") {
				add(p)
			}
		}
	}
	return out
}

// IsAdmin reports roster membership, case-insensitive.
func (v View) IsAdmin(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, ok := v.Admins()[strings.ToLower(strings.TrimSpace(name))]
	return ok
}
