package lore

import (
	"math/rand"
	"strings"
)

// maxDistinctTries bounds the redraws used to keep a second location,
// faction or character different from the first one.
const maxDistinctTries = 8

// maxRounds bounds how many times the passes are repeated to resolve
// tokens introduced by fill-in values.
const maxRounds = 3

// fixedTokens are the placeholders with dedicated passes.
var fixedTokens = []string{
	"{location}", "{location2}", "{faction}", "{faction2}",
	"{character_type}", "{character_name}", "{character_name2}",
	"{magic_field}", "{resource}", "{valuable_resource}",
	"{monster_type}", "{other_realm}", "{inn_name}",
}

// Fill resolves the placeholder tokens in template against the vocabulary.
//
// Passes run in a fixed order: locations, factions, characters, the single
// value tokens, then every generic fill-in key in sorted order. Each pass
// resolves only its own tokens. Fill-in values may carry tokens of their own
// ("a shortage due to {natural_disaster}"), so the passes are repeated on the
// result while known tokens remain, up to maxRounds.
// Distinctness of the second location, faction and character is best-effort.
func Fill(template string, v *Vocabulary, rng *rand.Rand) string {
	s := template
	for round := 0; round < maxRounds; round++ {
		s = fillPass(s, v, rng)
		if !hasToken(s, v) {
			break
		}
	}
	return s
}

func hasToken(s string, v *Vocabulary) bool {
	if !strings.Contains(s, "{") {
		return false
	}
	for _, tok := range fixedTokens {
		if strings.Contains(s, tok) {
			return true
		}
	}
	for key := range v.FillIns {
		if strings.Contains(s, "{"+key+"}") {
			return true
		}
	}
	return false
}

func fillPass(template string, v *Vocabulary, rng *rand.Rand) string {
	s := template

	var firstLocation string
	s, firstLocation = replaceEach(s, "{location}", rng, v.Locations)
	if strings.Contains(s, "{location2}") && len(v.Locations) > 0 {
		loc := drawDistinct(rng, v.Locations, firstLocation)
		s = strings.ReplaceAll(s, "{location2}", loc)
	}

	var firstFaction string
	s, firstFaction = replaceEach(s, "{faction}", rng, v.Factions)
	if strings.Contains(s, "{faction2}") && len(v.Factions) > 0 {
		f := drawDistinct(rng, v.Factions, firstFaction)
		s = strings.ReplaceAll(s, "{faction2}", f)
	}

	var firstName string
	if strings.Contains(s, "{character_type}") || strings.Contains(s, "{character_name}") {
		if typ, name, ok := drawCharacter(rng, v); ok {
			s = strings.ReplaceAll(s, "{character_type}", typ)
			s = strings.ReplaceAll(s, "{character_name}", name)
			firstName = name
		}
	}
	if strings.Contains(s, "{character_name2}") {
		if _, name, ok := drawCharacter(rng, v); ok {
			if firstName != "" && v.CharacterCount() > 1 {
				for i := 0; i < maxDistinctTries && name == firstName; i++ {
					_, name, _ = drawCharacter(rng, v)
				}
			}
			s = strings.ReplaceAll(s, "{character_name2}", name)
		}
	}

	singles := []struct {
		token string
		pool  []string
	}{
		{"{magic_field}", v.MagicFields},
		{"{resource}", v.Resources},
		{"{valuable_resource}", v.Resources},
		{"{monster_type}", v.Monsters},
		{"{other_realm}", v.OtherRealms},
		{"{inn_name}", v.InnNames},
	}
	for _, single := range singles {
		if strings.Contains(s, single.token) && len(single.pool) > 0 {
			s = strings.ReplaceAll(s, single.token, pick(rng, single.pool))
		}
	}

	for _, key := range v.FillInKeys() {
		s, _ = replaceEach(s, "{"+key+"}", rng, v.FillIns[key])
	}

	return s
}

// replaceEach substitutes every occurrence of token with an independent
// draw from pool and returns the first value substituted. Scanning resumes
// after each inserted value, so values are never re-resolved by this pass.
func replaceEach(s, token string, rng *rand.Rand, pool []string) (string, string) {
	if len(pool) == 0 {
		return s, ""
	}
	var b strings.Builder
	var first string
	found := false
	rest := s
	for {
		i := strings.Index(rest, token)
		if i < 0 {
			break
		}
		val := pick(rng, pool)
		if !found {
			first, found = val, true
		}
		b.WriteString(rest[:i])
		b.WriteString(val)
		rest = rest[i+len(token):]
	}
	if !found {
		return s, ""
	}
	b.WriteString(rest)
	return b.String(), first
}

// drawDistinct draws from pool, redrawing a bounded number of times while
// the value equals avoid.
func drawDistinct(rng *rand.Rand, pool []string, avoid string) string {
	val := pick(rng, pool)
	if avoid == "" || distinct(pool) < 2 {
		return val
	}
	for i := 0; i < maxDistinctTries && val == avoid; i++ {
		val = pick(rng, pool)
	}
	return val
}

// drawCharacter picks a type uniformly, then a name uniformly within it.
func drawCharacter(rng *rand.Rand, v *Vocabulary) (string, string, bool) {
	if len(v.Characters) == 0 {
		return "", "", false
	}
	ct := v.Characters[rng.Intn(len(v.Characters))]
	if len(ct.Names) == 0 {
		return "", "", false
	}
	return ct.Type, pick(rng, ct.Names), true
}

func pick(rng *rand.Rand, pool []string) string {
	return pool[rng.Intn(len(pool))]
}

func distinct(pool []string) int {
	seen := make(map[string]struct{}, len(pool))
	for _, p := range pool {
		seen[p] = struct{}{}
	}
	return len(seen)
}
