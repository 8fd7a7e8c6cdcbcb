package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traffic-harvester/internal/model"
)

func f(v float64) *float64 { return &v }

func ev(id string, lat, lon *float64, typ string) model.Event {
	return model.Event{ID: id, Latitude: lat, Longitude: lon, Type: typ}
}

func TestIsDuplicate(t *testing.T) {
	known := []model.Event{
		ev("A1", f(-33.45), f(-70.66), "ACCIDENT"),
		ev("", f(-33.40), f(-70.60), model.TypeJam),
	}

	tests := []struct {
		name string
		cand model.Event
		want bool
	}{
		{"same id different coords", ev("A1", f(1), f(2), "HAZARD"), true},
		{"no id same coords and type", ev("", f(-33.45), f(-70.66), "ACCIDENT"), true},
		{"other id same coords and type", ev("B9", f(-33.40), f(-70.60), model.TypeJam), true},
		{"same coords other type", ev("", f(-33.45), f(-70.66), "HAZARD"), false},
		{"different id and coords", ev("B2", f(-33.46), f(-70.66), "ACCIDENT"), false},
		{"empty ids never match on id", ev("", f(0), f(0), "POLICE"), false},
		{"absent coords vs present", ev("", nil, nil, "ACCIDENT"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsDuplicate(tt.cand, known))
		})
	}
}

func TestIsDuplicate_AbsentCoordinatesMatch(t *testing.T) {
	known := []model.Event{ev("", nil, nil, "HAZARD")}
	assert.True(t, IsDuplicate(ev("", nil, nil, "HAZARD"), known))
	assert.False(t, IsDuplicate(ev("", nil, nil, "POLICE"), known))
	assert.False(t, IsDuplicate(ev("", nil, nil, "HAZARD"), nil))
}

func TestIndexMatchesLinearScan(t *testing.T) {
	known := []model.Event{
		ev("A1", f(-33.45), f(-70.66), "ACCIDENT"),
		ev("", f(-33.40), f(-70.60), model.TypeJam),
		ev("", nil, nil, "HAZARD"),
		ev("Z", f(0), f(0), "POLICE"),
	}
	candidates := []model.Event{
		ev("A1", nil, nil, "X"),
		ev("", f(-33.45), f(-70.66), "ACCIDENT"),
		ev("", f(-33.45), f(-70.66), "HAZARD"),
		ev("", nil, nil, "HAZARD"),
		ev("", nil, f(-70.60), model.TypeJam),
		ev("Q", f(-33.40), f(-70.60), model.TypeJam),
		ev("", f(0), f(0), "POLICE"),
		ev("R", f(1), f(1), "POLICE"),
	}
	idx := NewIndex(known)
	for _, c := range candidates {
		assert.Equal(t, IsDuplicate(c, known), idx.Contains(c), "candidate %+v", c)
	}
}

func TestFilter(t *testing.T) {
	idx := NewIndex([]model.Event{ev("A1", f(1), f(1), "ACCIDENT")})
	batch := []model.Event{
		ev("A1", f(9), f(9), "ACCIDENT"), // known id
		ev("B1", f(2), f(2), "HAZARD"),
		ev("B1", f(3), f(3), "HAZARD"), // repeat inside batch
		ev("", f(2), f(2), "HAZARD"),   // same tuple as B1
		ev("C1", f(4), f(4), "POLICE"),
	}

	out := Filter(batch, idx)
	require.Len(t, out, 2)
	assert.Equal(t, "B1", out[0].ID)
	assert.Equal(t, "C1", out[1].ID)

	// idx is not modified until the caller commits
	assert.False(t, idx.Contains(out[0]))
}

func TestFilterIsIdempotent(t *testing.T) {
	var corpus []model.Event
	batch := []model.Event{
		ev("A", f(1), f(1), "ACCIDENT"),
		ev("", f(2), f(2), model.TypeJam),
	}
	for i := 0; i < 2; i++ {
		idx := NewIndex(corpus)
		fresh := Filter(batch, idx)
		corpus = append(corpus, fresh...)
	}
	assert.Len(t, corpus, 2)
}
