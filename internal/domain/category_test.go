package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCategory(t *testing.T) {
	tests := []struct {
		raw  string
		want Category
	}{
		{"Próximas carreras", CategoryUpcomingRace},
		{"proximas Carreras", CategoryUpcomingRace},
		{"  General ", CategoryGeneral},
		{"Desafios", CategoryChallenges},
		{"Compra venta", CategoryMarketplace},
	}
	for _, tt := range tests {
		got, err := ParseCategory(tt.raw)
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got)
	}

	_, err := ParseCategory("Técnica")
	assert.Error(t, err)
}

func TestPrimaryRole_Valid(t *testing.T) {
	assert.True(t, RoleJinete.Valid())
	assert.False(t, PrimaryRole("admin").Valid())
}

func TestPost_ScopeIncludesRace(t *testing.T) {
	raceID := "race-1"
	p := Post{Base: Base{ID: "p1"}, UserID: "u1", Category: CategoryUpcomingRace, RaceID: &raceID}
	s := p.Scope()
	assert.Equal(t, "race-1", s["race_id"])
	assert.Equal(t, "u1", s["user_id"])

	p.RaceID = nil
	_, ok := p.Scope()["race_id"]
	assert.False(t, ok)
}

func TestPost_JSONHidesRelations(t *testing.T) {
	p := Post{Base: Base{ID: "p1"}, Title: "Hola", ImageURLs: URLs{"https://cdn/x.png"}}
	data, err := json.Marshal(p)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "p1", m["id"])
	assert.NotContains(t, m, "Race")
	assert.Equal(t, []any{"https://cdn/x.png"}, m["image_urls"])
}

func TestDirectMessage_Counterpart(t *testing.T) {
	m := DirectMessage{SenderID: "a", ReceiverID: "b"}
	assert.Equal(t, "b", m.Counterpart("a"))
	assert.Equal(t, "a", m.Counterpart("b"))
}
