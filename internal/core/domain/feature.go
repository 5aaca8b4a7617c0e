package domain

import "fmt"

// FeatureKind is the shape of an editable map feature.
type FeatureKind int

const (
	KindPolyline FeatureKind = iota + 1
	KindPolygon
	KindPoint
)

func (k FeatureKind) String() string {
	switch k {
	case KindPolyline:
		return "polyline"
	case KindPolygon:
		return "polygon"
	case KindPoint:
		return "point"
	default:
		return "unknown"
	}
}

// MarshalText makes the kind readable in JSON payloads.
func (k FeatureKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *FeatureKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "polyline":
		*k = KindPolyline
	case "polygon":
		*k = KindPolygon
	case "point":
		*k = KindPoint
	default:
		return fmt.Errorf("%w: unknown feature kind %q", ErrInvalidInput, text)
	}
	return nil
}

// Closed reports whether the vertices form a ring.
func (k FeatureKind) Closed() bool { return k == KindPolygon }

// Feature is a copy of an editable map feature. The store that issued ID
// owns the live feature; a Feature value never aliases it.
type Feature struct {
	ID       int         `json:"id"`
	Kind     FeatureKind `json:"kind"`
	Vertices []GeoPoint  `json:"vertices"`
}
