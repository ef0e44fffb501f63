package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntityType(t *testing.T) {
	for _, et := range EntityTypes {
		got, err := ParseEntityType(string(et))
		require.NoError(t, err)
		assert.Equal(t, et, got)
	}
	_, err := ParseEntityType("robot")
	assert.Error(t, err)
}

func TestEntity_AddLinkAndConversation(t *testing.T) {
	e := &Entity{ID: "a"}
	assert.True(t, e.AddLink("b"))
	assert.False(t, e.AddLink("b"), "duplicate link")
	assert.False(t, e.AddLink("a"), "self link")
	assert.True(t, e.HasLink("b"))

	e.AddConversation("c1")
	e.AddConversation("c1")
	assert.Equal(t, []string{"c1"}, e.Conversations)

	c := e.Clone()
	c.Links = append(c.Links, "z")
	assert.Len(t, e.Links, 1, "clone must not share slices")
}

func TestStyleFor(t *testing.T) {
	seen := map[string]bool{}
	for _, et := range EntityTypes {
		s := StyleFor(et)
		assert.NotEqual(t, DefaultStyle.Color, s.Color)
		assert.False(t, seen[s.Color], "colors must be distinct")
		seen[s.Color] = true
	}
	assert.Equal(t, DefaultStyle, StyleFor("unknown"))
}

func TestPercent(t *testing.T) {
	assert.Equal(t, 100.0, Percent(0, 0))
	assert.Equal(t, 50.0, Percent(1, 2))
}
