package domain

import (
	"encoding/json"
	"fmt"
	"math"
)

// Optional is a float64 that may be absent. It stays comparable so that
// GeoPoint can be compared with ==.
type Optional struct {
	Value float64
	Valid bool
}

// Some returns a present Optional.
func Some(v float64) Optional {
	return Optional{Value: v, Valid: true}
}

// MarshalJSON encodes an absent value as null.
func (o Optional) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// UnmarshalJSON accepts a number or null.
func (o *Optional) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = Optional{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// GeoPoint represents a geographic coordinate (WGS 84) with optional
// altitude (meters) and horizontal accuracy (meters).
type GeoPoint struct {
	Lat      float64  `json:"lat"`
	Lon      float64  `json:"lon"`
	Altitude Optional `json:"altitude"`
	Accuracy Optional `json:"accuracy"`
}

// NewGeoPoint returns a point without altitude or accuracy.
func NewGeoPoint(lat, lon float64) GeoPoint {
	return GeoPoint{Lat: lat, Lon: lon}
}

// WithAltitude returns a copy of p with the altitude set.
func (p GeoPoint) WithAltitude(alt float64) GeoPoint {
	p.Altitude = Some(alt)
	return p
}

// WithAccuracy returns a copy of p with the accuracy set.
func (p GeoPoint) WithAccuracy(acc float64) GeoPoint {
	p.Accuracy = Some(acc)
	return p
}

// Validate reports ErrInvalidInput for coordinates outside the WGS 84 range.
func (p GeoPoint) Validate() error {
	if math.IsNaN(p.Lat) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidInput, p.Lat)
	}
	if math.IsNaN(p.Lon) || p.Lon < -180 || p.Lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidInput, p.Lon)
	}
	if p.Accuracy.Valid && (math.IsNaN(p.Accuracy.Value) || p.Accuracy.Value < 0) {
		return fmt.Errorf("%w: negative accuracy", ErrInvalidInput)
	}
	return nil
}

func (p GeoPoint) String() string {
	return fmt.Sprintf("(%.6f, %.6f)", p.Lat, p.Lon)
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// Center returns the midpoint of the box.
func (b Bounds) Center() GeoPoint {
	return NewGeoPoint((b.MinLat+b.MaxLat)/2, (b.MinLon+b.MaxLon)/2)
}

// Width is the longitude span in degrees.
func (b Bounds) Width() float64 { return b.MaxLon - b.MinLon }

// Height is the latitude span in degrees.
func (b Bounds) Height() float64 { return b.MaxLat - b.MinLat }

// Viewport is the visible region of the map.
type Viewport struct {
	Center GeoPoint `json:"center"`
	Zoom   float64  `json:"zoom"`
}
