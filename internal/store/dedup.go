package store

import (
	"traffic-harvester/internal/model"
)

// IsDuplicate reports whether candidate matches any known event, either by
// upstream id (when both sides carry one) or by exact coordinates and type.
func IsDuplicate(candidate model.Event, known []model.Event) bool {
	for _, k := range known {
		if candidate.ID != "" && k.ID != "" && candidate.ID == k.ID {
			return true
		}
		if sameCoord(candidate.Latitude, k.Latitude) &&
			sameCoord(candidate.Longitude, k.Longitude) &&
			candidate.Type == k.Type {
			return true
		}
	}
	return false
}

func sameCoord(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Index answers IsDuplicate in O(1) by keeping one set of ids and one set of
// (latitude, longitude, type) tuples.
type Index struct {
	ids  map[string]struct{}
	geos map[string]struct{}
}

func NewIndex(events []model.Event) *Index {
	idx := &Index{
		ids:  make(map[string]struct{}, len(events)),
		geos: make(map[string]struct{}, len(events)),
	}
	for _, e := range events {
		idx.Add(e)
	}
	return idx
}

func (i *Index) Contains(e model.Event) bool {
	if e.ID != "" {
		if _, ok := i.ids[e.ID]; ok {
			return true
		}
	}
	_, ok := i.geos[model.GeoKey(e)]
	return ok
}

func (i *Index) Add(e model.Event) {
	if e.ID != "" {
		i.ids[e.ID] = struct{}{}
	}
	i.geos[model.GeoKey(e)] = struct{}{}
}

// Filter returns the events of batch not present in idx, dropping repeats
// inside the batch as well. idx itself is left untouched; callers Add the
// survivors once they are committed.
func Filter(batch []model.Event, idx *Index) []model.Event {
	seen := NewIndex(nil)
	out := make([]model.Event, 0, len(batch))
	for _, e := range batch {
		if idx.Contains(e) || seen.Contains(e) {
			continue
		}
		seen.Add(e)
		out = append(out, e)
	}
	return out
}
