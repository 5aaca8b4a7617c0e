package usecases_test

import (
	"errors"
	"testing"

	"github.com/samirrijal/fieldmap/internal/core/domain"
	"github.com/samirrijal/fieldmap/internal/core/usecases"
)

func pts(coords ...float64) []domain.GeoPoint {
	out := make([]domain.GeoPoint, 0, len(coords)/2)
	for i := 0; i+1 < len(coords); i += 2 {
		out = append(out, domain.NewGeoPoint(coords[i], coords[i+1]))
	}
	return out
}

func TestFeatureStore_IDsStrictlyIncreasing(t *testing.T) {
	s := usecases.NewFeatureStore()

	last := 0
	for i := 0; i < 50; i++ {
		var id int
		if i%3 == 0 {
			id = s.AddPoint(domain.NewGeoPoint(1, 1))
		} else {
			var err error
			id, err = s.Add(pts(1, 1, 2, 2), i%2 == 0)
			if err != nil {
				t.Fatalf("add %d: %v", i, err)
			}
		}
		if id <= last {
			t.Fatalf("id %d not greater than previous %d", id, last)
		}
		last = id
	}
	if s.Len() != 50 {
		t.Errorf("expected 50 features, got %d", s.Len())
	}
}

func TestFeatureStore_AddEmpty(t *testing.T) {
	s := usecases.NewFeatureStore()

	for _, closed := range []bool{false, true} {
		_, err := s.Add(nil, closed)
		if !errors.Is(err, domain.ErrInvalidInput) {
			t.Errorf("closed=%v: expected ErrInvalidInput, got %v", closed, err)
		}
	}
	if s.Len() != 0 {
		t.Errorf("expected empty store, got %d", s.Len())
	}
}

func TestFeatureStore_AddCopiesVertices(t *testing.T) {
	s := usecases.NewFeatureStore()
	in := pts(1, 1, 2, 2)

	id, _ := s.Add(in, false)
	in[0] = domain.NewGeoPoint(50, 50)

	got := s.Vertices(id)
	if got[0].Lat != 1 {
		t.Errorf("store aliased caller slice: %v", got)
	}

	got[1] = domain.NewGeoPoint(60, 60)
	if s.Vertices(id)[1].Lat != 2 {
		t.Error("Vertices returned a live reference")
	}
}

func TestFeatureStore_Kinds(t *testing.T) {
	s := usecases.NewFeatureStore()
	line, _ := s.Add(pts(0, 0, 1, 1), false)
	poly, _ := s.Add(pts(0, 0, 1, 1, 1, 0), true)
	point := s.AddPoint(domain.NewGeoPoint(3, 3))

	tests := []struct {
		id   int
		want domain.FeatureKind
	}{
		{line, domain.KindPolyline},
		{poly, domain.KindPolygon},
		{point, domain.KindPoint},
	}
	for _, tt := range tests {
		f, ok := s.Feature(tt.id)
		if !ok {
			t.Fatalf("feature %d missing", tt.id)
		}
		if f.Kind != tt.want {
			t.Errorf("feature %d: expected %v, got %v", tt.id, tt.want, f.Kind)
		}
	}
}

func TestFeatureStore_Append(t *testing.T) {
	s := usecases.NewFeatureStore()
	id, _ := s.Add(pts(0, 0), false)

	if err := s.Append(id, domain.NewGeoPoint(1, 1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(id, domain.NewGeoPoint(2, 2)); err != nil {
		t.Fatalf("append: %v", err)
	}

	got := s.Vertices(id)
	if len(got) != 3 {
		t.Fatalf("expected 3 vertices, got %d", len(got))
	}
	for i, v := range got {
		if v.Lat != float64(i) {
			t.Errorf("vertex %d: expected lat %d, got %v", i, i, v.Lat)
		}
	}
}

func TestFeatureStore_AppendUnknown(t *testing.T) {
	s := usecases.NewFeatureStore()
	point := s.AddPoint(domain.NewGeoPoint(1, 1))

	for _, id := range []int{0, 99, point} {
		err := s.Append(id, domain.NewGeoPoint(2, 2))
		if !errors.Is(err, domain.ErrUnknownFeature) {
			t.Errorf("id %d: expected ErrUnknownFeature, got %v", id, err)
		}
	}
	f, ok := s.Feature(point)
	if !ok || len(f.Vertices) != 1 {
		t.Errorf("point changed: %+v", f)
	}
}

func TestFeatureStore_VerticesOnlyForPolys(t *testing.T) {
	s := usecases.NewFeatureStore()
	point := s.AddPoint(domain.NewGeoPoint(1, 1))
	line, _ := s.Add(pts(1, 1), false)

	if got := s.Vertices(point); got == nil || len(got) != 0 {
		t.Errorf("expected empty vertices for a point, got %#v", got)
	}
	if got := s.Vertices(line); len(got) != 1 {
		t.Errorf("expected 1 vertex for a polyline, got %d", len(got))
	}
}

func TestFeatureStore_VerticesUnknownIsEmpty(t *testing.T) {
	s := usecases.NewFeatureStore()

	for _, id := range []int{-1, 0, 1, 1 << 30} {
		got := s.Vertices(id)
		if got == nil || len(got) != 0 {
			t.Errorf("id %d: expected empty non-nil slice, got %#v", id, got)
		}
	}
}

func TestFeatureStore_RemoveNeverReusesID(t *testing.T) {
	s := usecases.NewFeatureStore()
	id, _ := s.Add(pts(1, 1), false)

	if !s.Remove(id) {
		t.Fatal("expected remove to report a live feature")
	}
	if s.Remove(id) {
		t.Error("second remove should be a no-op")
	}
	if len(s.Vertices(id)) != 0 {
		t.Error("expected empty vertices after remove")
	}

	next, _ := s.Add(pts(2, 2), false)
	if next == id {
		t.Errorf("id %d reused", id)
	}
}

func TestFeatureStore_ClearKeepsAllocator(t *testing.T) {
	s := usecases.NewFeatureStore()
	var maxID int
	for i := 0; i < 5; i++ {
		maxID, _ = s.Add(pts(1, 1), false)
	}

	removed := s.Clear()
	if len(removed) != 5 {
		t.Fatalf("expected 5 removed ids, got %v", removed)
	}
	for i := 1; i < len(removed); i++ {
		if removed[i] <= removed[i-1] {
			t.Errorf("removed ids not sorted: %v", removed)
		}
	}
	if s.Len() != 0 || len(s.Features()) != 0 {
		t.Error("expected empty store after clear")
	}

	next := s.AddPoint(domain.NewGeoPoint(0, 0))
	if next <= maxID {
		t.Errorf("expected id > %d after clear, got %d", maxID, next)
	}
}

func TestFeatureStore_FeaturesOrdered(t *testing.T) {
	s := usecases.NewFeatureStore()
	for i := 0; i < 10; i++ {
		s.AddPoint(domain.NewGeoPoint(float64(i), 0))
	}
	s.Remove(4)

	all := s.Features()
	if len(all) != 9 {
		t.Fatalf("expected 9 features, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].ID <= all[i-1].ID {
			t.Fatalf("features not ordered by id: %d after %d", all[i].ID, all[i-1].ID)
		}
	}
}
