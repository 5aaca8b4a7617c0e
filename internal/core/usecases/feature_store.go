package usecases

import (
	"fmt"
	"sort"

	"github.com/samirrijal/fieldmap/internal/core/domain"
)

type feature struct {
	kind     domain.FeatureKind
	vertices []domain.GeoPoint
}

// FeatureStore owns the editable map features of one controller. IDs are
// allocated monotonically and never reissued, not even after Clear.
// It holds no locks: only the owner loop may touch it.
type FeatureStore struct {
	features map[int]*feature
	lastID   int
}

// NewFeatureStore creates an empty FeatureStore.
func NewFeatureStore() *FeatureStore {
	return &FeatureStore{features: make(map[int]*feature)}
}

// Add stores a polyline (closed=false) or polygon (closed=true) and returns
// its ID.
func (s *FeatureStore) Add(vertices []domain.GeoPoint, closed bool) (int, error) {
	if len(vertices) == 0 {
		return 0, fmt.Errorf("%w: feature needs at least one vertex", domain.ErrInvalidInput)
	}

	kind := domain.KindPolyline
	if closed {
		kind = domain.KindPolygon
	}
	return s.insert(kind, vertices), nil
}

// AddPoint stores a single-vertex point feature and returns its ID.
func (s *FeatureStore) AddPoint(p domain.GeoPoint) int {
	return s.insert(domain.KindPoint, []domain.GeoPoint{p})
}

func (s *FeatureStore) insert(kind domain.FeatureKind, vertices []domain.GeoPoint) int {
	s.lastID++
	s.features[s.lastID] = &feature{
		kind:     kind,
		vertices: append(make([]domain.GeoPoint, 0, len(vertices)), vertices...),
	}
	return s.lastID
}

// Append adds a vertex to the end of a polyline or polygon. It returns
// ErrUnknownFeature when id does not name a live poly; callers may ignore it.
func (s *FeatureStore) Append(id int, p domain.GeoPoint) error {
	f, ok := s.features[id]
	if !ok || f.kind == domain.KindPoint {
		return fmt.Errorf("%w: %d", domain.ErrUnknownFeature, id)
	}
	f.vertices = append(f.vertices, p)
	return nil
}

// Vertices returns a copy of a polyline's or polygon's vertices, or an
// empty slice if id does not name a live poly. Points are read with Feature.
func (s *FeatureStore) Vertices(id int) []domain.GeoPoint {
	f, ok := s.features[id]
	if !ok || f.kind == domain.KindPoint {
		return []domain.GeoPoint{}
	}
	return append([]domain.GeoPoint{}, f.vertices...)
}

// Feature returns a copy of one feature.
func (s *FeatureStore) Feature(id int) (domain.Feature, bool) {
	f, ok := s.features[id]
	if !ok {
		return domain.Feature{}, false
	}
	return f.snapshot(id), true
}

// Features returns copies of all live features ordered by ID.
func (s *FeatureStore) Features() []domain.Feature {
	out := make([]domain.Feature, 0, len(s.features))
	for id, f := range s.features {
		out = append(out, f.snapshot(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of live features.
func (s *FeatureStore) Len() int { return len(s.features) }

// Remove deletes a feature and reports whether it was live.
func (s *FeatureStore) Remove(id int) bool {
	if _, ok := s.features[id]; !ok {
		return false
	}
	delete(s.features, id)
	return true
}

// Clear deletes every feature and returns the removed IDs in ascending
// order. The ID allocator keeps counting from where it was.
func (s *FeatureStore) Clear() []int {
	ids := make([]int, 0, len(s.features))
	for id := range s.features {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	s.features = make(map[int]*feature)
	return ids
}

func (f *feature) snapshot(id int) domain.Feature {
	return domain.Feature{
		ID:       id,
		Kind:     f.kind,
		Vertices: append([]domain.GeoPoint{}, f.vertices...),
	}
}
