package natsadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/samirrijal/fieldmap/internal/core/domain"
)

// FixMessage is a raw GPS fix as published by the location daemon.
type FixMessage struct {
	Lat      *float64   `json:"lat"`
	Lon      *float64   `json:"lon"`
	Altitude *float64   `json:"alt,omitempty"`
	Accuracy *float64   `json:"accuracy,omitempty"`
	Time     *time.Time `json:"time,omitempty"`
}

// ControlMessage tells the location daemon to start or stop acquisition.
type ControlMessage struct {
	Enabled bool `json:"enabled"`
}

// GestureMessage is a click or long press reported by a remote renderer.
type GestureMessage struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// ViewportMessage is a viewport command sent to a remote renderer.
type ViewportMessage struct {
	Op     string           `json:"op"`
	Center *domain.GeoPoint `json:"center,omitempty"`
	Zoom   *float64         `json:"zoom,omitempty"`
	Bounds *domain.Bounds   `json:"bounds,omitempty"`
}

// RemoveMessage drops a feature from a remote renderer.
type RemoveMessage struct {
	ID int `json:"id"`
}

// LocationMessage shows or hides the GPS marker.
type LocationMessage struct {
	Visible bool             `json:"visible"`
	Fix     *domain.GeoPoint `json:"fix,omitempty"`
}

var errMissingCoordinate = errors.New("missing coordinate")

// DecodeFix parses and validates a FixMessage.
func DecodeFix(data []byte) (domain.GeoPoint, error) {
	var msg FixMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return domain.GeoPoint{}, fmt.Errorf("%w: decode fix: %w", domain.ErrInvalidInput, err)
	}
	if msg.Lat == nil || msg.Lon == nil {
		return domain.GeoPoint{}, fmt.Errorf("%w: %w", domain.ErrInvalidInput, errMissingCoordinate)
	}

	p := domain.NewGeoPoint(*msg.Lat, *msg.Lon)
	if msg.Altitude != nil {
		p = p.WithAltitude(*msg.Altitude)
	}
	if msg.Accuracy != nil {
		p = p.WithAccuracy(*msg.Accuracy)
	}
	if err := p.Validate(); err != nil {
		return domain.GeoPoint{}, err
	}
	return p, nil
}

// DecodeGesture parses and validates a GestureMessage.
func DecodeGesture(data []byte) (domain.GeoPoint, error) {
	var msg GestureMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return domain.GeoPoint{}, fmt.Errorf("%w: decode gesture: %w", domain.ErrInvalidInput, err)
	}
	p := domain.NewGeoPoint(msg.Lat, msg.Lon)
	if err := p.Validate(); err != nil {
		return domain.GeoPoint{}, err
	}
	return p, nil
}

// rejectReason labels a decode failure for metrics.
func rejectReason(err error) string {
	if errors.Is(err, errMissingCoordinate) {
		return "missing_coordinate"
	}
	var syntax *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntax) || errors.As(err, &typeErr) {
		return "malformed"
	}
	return "out_of_range"
}
