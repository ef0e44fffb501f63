package dedup

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/hyperjump/chatgraph/internal/models"
)

func seqIDs() IDFunc {
	n := 0
	return func(typ models.EntityType, key string) string {
		n++
		return fmt.Sprintf("%s_%d", typ, n)
	}
}

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func person(name string) models.Candidate {
	return models.Candidate{Type: models.TypePerson, Name: name, Context: "ctx " + name}
}

func TestResolve_createsEntity(t *testing.T) {
	set := NewEntitySet()
	r := NewResolver(WithIDFunc(seqIDs()))

	id, created, err := r.Resolve(person("John Smith"), "c1", t0, set)
	require.NoError(t, err)
	assert.True(t, created)

	e, ok := set.Get(id)
	require.True(t, ok)
	assert.Equal(t, "john smith", e.NormalizedKey)
	assert.Equal(t, 0, e.Occurrences)
	assert.Equal(t, t0, e.FirstSeen)
	assert.Equal(t, t0, e.LastSeen)
	assert.Equal(t, "ctx John Smith", e.Description)
	assert.Empty(t, e.Conversations)
	assert.Empty(t, e.Links)
}

func TestResolve_descriptionPreferred(t *testing.T) {
	set := NewEntitySet()
	r := NewResolver()
	c := models.Candidate{Type: models.TypeKnowledge, Name: "short", Description: "the full phrase", Context: "ctx"}
	id, _, err := r.Resolve(c, "c1", t0, set)
	require.NoError(t, err)
	e, _ := set.Get(id)
	assert.Equal(t, "the full phrase", e.Description)
}

func TestResolve_exactMatchIsCaseInsensitive(t *testing.T) {
	set := NewEntitySet()
	r := NewResolver(WithIDFunc(seqIDs()))

	first, _, err := r.Resolve(person("John Smith"), "c1", t0, set)
	require.NoError(t, err)
	second, created, err := r.Resolve(person("john smith"), "c2", t0, set)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, set.Len())
}

func TestResolve_fuzzyMerge(t *testing.T) {
	set := NewEntitySet()
	r := NewResolver(WithIDFunc(seqIDs()))

	first, _, _ := r.Resolve(person("Jonathan Smith"), "c1", t0, set)
	second, created, err := r.Resolve(person("Jonathon Smyth"), "c2", t0, set)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first, second)
}

func TestResolve_fuzzyDistanceTooLarge(t *testing.T) {
	set := NewEntitySet()
	r := NewResolver(WithIDFunc(seqIDs()))

	first, _, _ := r.Resolve(person("Jonathan Smith"), "c1", t0, set)
	second, created, err := r.Resolve(person("Jonah Smythe"), "c2", t0, set)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first, second)
}

func TestResolve_shortKeysNeverFuzzy(t *testing.T) {
	set := NewEntitySet()
	r := NewResolver(WithIDFunc(seqIDs()))

	// "alice" and "alica" are distance 1 but only 5 runes long.
	first, _, _ := r.Resolve(person("Alice"), "c1", t0, set)
	second, created, err := r.Resolve(person("Alica"), "c2", t0, set)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, first, second)
}

func TestResolve_typesAreSeparate(t *testing.T) {
	set := NewEntitySet()
	r := NewResolver(WithIDFunc(seqIDs()))

	a, _, _ := r.Resolve(models.Candidate{Type: models.TypeProject, Name: "Phoenix"}, "c1", t0, set)
	b, created, err := r.Resolve(person("Phoenix"), "c1", t0, set)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, a, b)
}

func TestResolve_exactBeatsFuzzy(t *testing.T) {
	set := NewEntitySet()
	r := NewResolver(WithIDFunc(seqIDs()))

	// Created before the exact one, and within distance 1 of the candidate.
	fuzzy, _, _ := r.Resolve(person("Marie Curia"), "c1", t0, set)
	exact, _, _ := r.Resolve(models.Candidate{Type: models.TypePerson, Name: "Marie Curie"}, "c1", t0, set)
	require.Equal(t, fuzzy, exact, "second resolve merges into the first")

	set2 := NewEntitySet()
	set2.Add(&models.Entity{ID: "fuzzy", Type: models.TypePerson, NormalizedKey: "marie curia"})
	set2.Add(&models.Entity{ID: "exact", Type: models.TypePerson, NormalizedKey: "marie curie"})
	got, _, err := r.Resolve(person("Marie Curie"), "c2", t0, set2)
	require.NoError(t, err)
	assert.Equal(t, "exact", got)
}

func TestResolve_fuzzyFirstInsertedWins(t *testing.T) {
	set := NewEntitySet()
	set.Add(&models.Entity{ID: "one", Type: models.TypePerson, NormalizedKey: "robert brown"})
	set.Add(&models.Entity{ID: "two", Type: models.TypePerson, NormalizedKey: "robert browm"})
	got, _, err := NewResolver().Resolve(person("Robert Browx"), "c1", t0, set)
	require.NoError(t, err)
	assert.Equal(t, "one", got)
}

func TestResolve_emptyKey(t *testing.T) {
	_, _, err := NewResolver().Resolve(person("!!!"), "c1", t0, NewEntitySet())
	assert.True(t, errors.Is(err, ErrEmptyKey))
}

func TestDefaultID(t *testing.T) {
	id := defaultID(models.TypePerson, "john smith")
	assert.Regexp(t, `^person_john-smith_[0-9a-f]{8}$`, id)
	assert.NotEqual(t, id, defaultID(models.TypePerson, "john smith"))
}

func TestResolve_mergesWithinDistance(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		base := rapid.StringMatching(`[a-z]{6,14}`).Draw(rt, "base")
		pos := rapid.IntRange(0, len(base)-1).Draw(rt, "pos")
		sub := rapid.RuneFrom([]rune("abcdefghijklmnopqrstuvwxyz")).Draw(rt, "sub")
		variant := base[:pos] + string(sub) + base[pos+1:]

		set := NewEntitySet()
		r := NewResolver(WithIDFunc(seqIDs()))
		first, _, err := r.Resolve(models.Candidate{Type: models.TypeProject, Name: base}, "c1", t0, set)
		if err != nil {
			rt.Fatal(err)
		}
		second, created, err := r.Resolve(models.Candidate{Type: models.TypeProject, Name: variant}, "c2", t0, set)
		if err != nil {
			rt.Fatal(err)
		}
		if created || first != second {
			rt.Fatalf("%q and %q should merge", base, variant)
		}
	})
}
