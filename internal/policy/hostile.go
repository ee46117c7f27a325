package policy

import (
	"strings"

	"basekeeper.gg/internal/settings"
)

// Entity is the victim-side adapter for damage checks.
type Entity interface {
	TypeID() string
	Families() []string
	IsPlayer() bool
}

// hostileFamilies is the fixed vocabulary of hostile mob families and
// type-id fragments. Claim protection never covers these.
var hostileFamilies = map[string]struct{}{
	"monster": {}, "hostile": {}, "undead": {}, "arthropod": {},
	"illager": {}, "raider": {},
	"zombie": {}, "husk": {}, "drowned": {}, "skeleton": {}, "stray": {},
	"creeper": {}, "spider": {}, "cave_spider": {}, "enderman": {},
	"slime": {}, "magma_cube": {}, "blaze": {}, "guardian": {},
	"elder_guardian": {}, "witch": {}, "phantom": {}, "wither": {},
	"warden": {}, "shulker": {}, "ghast": {}, "piglin": {}, "hoglin": {},
	"zoglin": {}, "piglin_brute": {}, "vindicator": {}, "pillager": {},
	"evoker": {}, "ravager": {},
}

// passiveHints settle the substring fallback for ids that matched no
// hostile fragment. Hostile fragments are checked first, so an id
// matching both (cave_spider, zombie_horse) stays hostile.
var passiveHints = map[string]struct{}{
	"cow": {}, "chicken": {}, "sheep": {}, "pig": {}, "horse": {},
	"donkey": {}, "mule": {}, "llama": {}, "camel": {}, "mooshroom": {},
	"rabbit": {}, "turtle": {}, "bee": {}, "cat": {}, "wolf": {},
	"fox": {}, "sniffer": {}, "villager": {}, "iron_golem": {},
	"snow_golem": {}, "parrot": {}, "axolotl": {}, "salmon": {}, "cod": {},
}

// IsHostile classifies an entity. Family tags are authoritative; when
// they are absent or inconclusive the type id is substring-matched
// against the hostile vocabulary, with passive hints overriding.
func IsHostile(ent Entity) bool {
	if ent == nil {
		return false
	}
	for _, f := range ent.Families() {
		if _, ok := hostileFamilies[strings.ToLower(strings.TrimSpace(f))]; ok {
			return true
		}
	}
	id := strings.ToLower(ent.TypeID())
	if id == "" {
		return false
	}
	for k := range hostileFamilies {
		if strings.Contains(id, k) {
			return true
		}
	}
	for k := range passiveHints {
		if strings.Contains(id, k) {
			return false
		}
	}
	return false
}

// CanDamage gates damage to an entity at its position. Players are
// never protected by claim flags, hostile mobs are always fair game;
// everything else goes through the kill-passive action check.
func (e *Engine) CanDamage(v settings.View, actingName string, victim Entity, x, y, z int, dim string) bool {
	if victim != nil && victim.IsPlayer() {
		return true
	}
	if IsHostile(victim) {
		return true
	}
	return e.CanAct(v, actingName, x, y, z, dim, ActionKillPassive)
}
