package http

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/fieldmap/internal/core/domain"
	"github.com/samirrijal/fieldmap/internal/core/usecases"
	"github.com/samirrijal/fieldmap/internal/pkg/geospatial"
)

// pointRequest is a point in a request body. Lat and Lon are required.
type pointRequest struct {
	Lat      *float64 `json:"lat"`
	Lon      *float64 `json:"lon"`
	Altitude *float64 `json:"alt,omitempty"`
	Accuracy *float64 `json:"accuracy,omitempty"`
}

func (r pointRequest) toPoint() (domain.GeoPoint, error) {
	if r.Lat == nil || r.Lon == nil {
		return domain.GeoPoint{}, fmt.Errorf("%w: lat and lon are required", domain.ErrInvalidInput)
	}
	p := domain.NewGeoPoint(*r.Lat, *r.Lon)
	if r.Altitude != nil {
		p = p.WithAltitude(*r.Altitude)
	}
	if r.Accuracy != nil {
		p = p.WithAccuracy(*r.Accuracy)
	}
	return p, p.Validate()
}

func toPoints(reqs []pointRequest) ([]domain.GeoPoint, error) {
	points := make([]domain.GeoPoint, 0, len(reqs))
	for i, r := range reqs {
		p, err := r.toPoint()
		if err != nil {
			return nil, fmt.Errorf("point %d: %w", i, err)
		}
		points = append(points, p)
	}
	return points, nil
}

type addFeatureRequest struct {
	Vertices []pointRequest `json:"vertices"`
	Closed   bool           `json:"closed"`
}

type idResponse struct {
	ID int `json:"id"`
}

type verticesResponse struct {
	ID       int                 `json:"id"`
	Kind     *domain.FeatureKind `json:"kind,omitempty"`
	Vertices []domain.GeoPoint   `json:"vertices"`
}

type locationResponse struct {
	Enabled bool             `json:"enabled"`
	State   string           `json:"state"`
	Fix     *domain.GeoPoint `json:"fix"`
}

type setLocationRequest struct {
	Enabled *bool `json:"enabled"`
}

type zoomRequest struct {
	pointRequest
	Zoom *float64 `json:"zoom,omitempty"`
}

type fitRequest struct {
	Points      []pointRequest `json:"points"`
	ScaleFactor *float64       `json:"scale_factor,omitempty"`
}

func featureID(c *fiber.Ctx) (int, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: feature id must be a positive integer", domain.ErrInvalidInput)
	}
	return id, nil
}

// ListFeaturesHandler returns all features and the GPS fix as GeoJSON.
func ListFeaturesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var (
			features []domain.Feature
			fix      *domain.GeoPoint
		)
		err := deps.onLoop(c.UserContext(), func(m *usecases.MapController) {
			features = m.Features()
			if p, ok := m.GPSLocation(); ok {
				fix = &p
			}
		})
		if err != nil {
			return errUnavailable(c, err.Error())
		}

		data, err := geospatial.FeatureCollection(features, fix).MarshalJSON()
		if err != nil {
			return errInternal(c, err.Error())
		}
		c.Set(fiber.HeaderContentType, "application/geo+json")
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.Send(data)
	}
}

// AddFeatureHandler adds a polyline or polygon.
func AddFeatureHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req addFeatureRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		vertices, err := toPoints(req.Vertices)
		if err != nil {
			return errFromDomain(c, err)
		}

		var id int
		var addErr error
		if err := deps.onLoop(c.UserContext(), func(m *usecases.MapController) {
			id, addErr = m.AddFeature(vertices, req.Closed)
		}); err != nil {
			return errUnavailable(c, err.Error())
		}
		if addErr != nil {
			return errFromDomain(c, addErr)
		}
		return c.Status(fiber.StatusCreated).JSON(idResponse{ID: id})
	}
}

// AddPointHandler adds an editable point.
func AddPointHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req pointRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		p, err := req.toPoint()
		if err != nil {
			return errFromDomain(c, err)
		}

		var id int
		if err := deps.onLoop(c.UserContext(), func(m *usecases.MapController) {
			id = m.AddPoint(p)
		}); err != nil {
			return errUnavailable(c, err.Error())
		}
		return c.Status(fiber.StatusCreated).JSON(idResponse{ID: id})
	}
}

// GetFeatureHandler returns a feature's kind and vertices. Unknown IDs yield
// an empty list rather than an error.
func GetFeatureHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := featureID(c)
		if err != nil {
			return errFromDomain(c, err)
		}

		resp := verticesResponse{ID: id, Vertices: []domain.GeoPoint{}}
		if err := deps.onLoop(c.UserContext(), func(m *usecases.MapController) {
			if f, ok := m.Feature(id); ok {
				resp.Kind = &f.Kind
				resp.Vertices = f.Vertices
			}
		}); err != nil {
			return errUnavailable(c, err.Error())
		}
		return c.JSON(resp)
	}
}

// AppendVertexHandler appends a vertex to a polyline or polygon.
func AppendVertexHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := featureID(c)
		if err != nil {
			return errFromDomain(c, err)
		}
		var req pointRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		p, err := req.toPoint()
		if err != nil {
			return errFromDomain(c, err)
		}

		var appendErr error
		if err := deps.onLoop(c.UserContext(), func(m *usecases.MapController) {
			appendErr = m.AppendVertex(id, p)
		}); err != nil {
			return errUnavailable(c, err.Error())
		}
		if appendErr != nil {
			return errFromDomain(c, appendErr)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// RemoveFeatureHandler removes one feature. Unknown IDs are not an error.
func RemoveFeatureHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := featureID(c)
		if err != nil {
			return errFromDomain(c, err)
		}
		if err := deps.onLoop(c.UserContext(), func(m *usecases.MapController) {
			m.RemoveFeature(id)
		}); err != nil {
			return errUnavailable(c, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ClearFeaturesHandler removes every feature.
func ClearFeaturesHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := deps.onLoop(c.UserContext(), func(m *usecases.MapController) {
			m.ClearFeatures()
		}); err != nil {
			return errUnavailable(c, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// GetLocationHandler reports GPS state and the last fix.
func GetLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var resp locationResponse
		if err := deps.onLoop(c.UserContext(), func(m *usecases.MapController) {
			resp = locationSnapshot(m)
		}); err != nil {
			return errUnavailable(c, err.Error())
		}
		c.Set(fiber.HeaderCacheControl, "no-store")
		return c.JSON(resp)
	}
}

// SetLocationHandler enables or disables GPS.
func SetLocationHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req setLocationRequest
		if err := c.BodyParser(&req); err != nil || req.Enabled == nil {
			return errBadRequest(c, "body must be {\"enabled\": bool}")
		}

		var (
			resp   locationResponse
			setErr error
		)
		if err := deps.onLoop(c.UserContext(), func(m *usecases.MapController) {
			setErr = m.SetGPSEnabled(*req.Enabled)
			resp = locationSnapshot(m)
		}); err != nil {
			return errUnavailable(c, err.Error())
		}
		if setErr != nil {
			LoggerFromCtx(c.UserContext()).Error("gps toggle failed", "enabled", *req.Enabled, "error", setErr)
			return errUnavailable(c, setErr.Error())
		}
		return c.JSON(resp)
	}
}

func locationSnapshot(m *usecases.MapController) locationResponse {
	resp := locationResponse{Enabled: m.GPSEnabled(), State: m.GPSState().String()}
	if p, ok := m.GPSLocation(); ok {
		resp.Fix = &p
	}
	return resp
}

// GetViewportHandler returns the map centre and zoom.
func GetViewportHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var vp domain.Viewport
		if err := deps.onLoop(c.UserContext(), func(m *usecases.MapController) {
			vp = domain.Viewport{Center: m.Center(), Zoom: m.Zoom()}
		}); err != nil {
			return errUnavailable(c, err.Error())
		}
		return c.JSON(vp)
	}
}

// SetCenterHandler recentres the map.
func SetCenterHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req pointRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		p, err := req.toPoint()
		if err != nil {
			return errFromDomain(c, err)
		}
		if err := deps.onLoop(c.UserContext(), func(m *usecases.MapController) {
			m.SetCenter(p)
		}); err != nil {
			return errUnavailable(c, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ZoomHandler zooms to a point, at the given zoom or the default close-up.
func ZoomHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req zoomRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		p, err := req.toPoint()
		if err != nil {
			return errFromDomain(c, err)
		}
		if req.Zoom != nil && *req.Zoom < 0 {
			return errBadRequest(c, "zoom must not be negative")
		}

		if err := deps.onLoop(c.UserContext(), func(m *usecases.MapController) {
			if req.Zoom != nil {
				m.ZoomToPointAt(p, *req.Zoom)
				return
			}
			m.ZoomToPoint(p)
		}); err != nil {
			return errUnavailable(c, err.Error())
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// FitHandler fits the viewport around a set of points.
func FitHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req fitRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid JSON body")
		}
		points, err := toPoints(req.Points)
		if err != nil {
			return errFromDomain(c, err)
		}
		scale := deps.FitScale
		if req.ScaleFactor != nil {
			scale = *req.ScaleFactor
		}

		var fitErr error
		if err := deps.onLoop(c.UserContext(), func(m *usecases.MapController) {
			fitErr = m.ZoomToBoundingBox(points, scale)
		}); err != nil {
			return errUnavailable(c, err.Error())
		}
		if fitErr != nil {
			return errFromDomain(c, fitErr)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
