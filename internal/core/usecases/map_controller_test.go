package usecases_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/samirrijal/fieldmap/internal/adapters/backend"
	"github.com/samirrijal/fieldmap/internal/core/domain"
	"github.com/samirrijal/fieldmap/internal/core/usecases"
	"github.com/samirrijal/fieldmap/internal/pkg/dispatch"
)

type harness struct {
	m        *usecases.MapController
	backend  *backend.Headless
	provider *mockProvider
	loop     *queueDispatcher
}

func newHarness(t *testing.T, opts usecases.Options) *harness {
	t.Helper()
	h := &harness{
		backend:  backend.NewHeadless(opts.Initial),
		provider: &mockProvider{},
		loop:     &queueDispatcher{},
	}
	h.m = usecases.NewMapController(h.backend, h.provider, h.loop, opts)
	return h
}

// attached returns a harness whose backend has reported ready.
func attached(t *testing.T) *harness {
	t.Helper()
	h := newHarness(t, usecases.Options{Initial: domain.Viewport{Zoom: 3}})
	if err := h.m.Attach(nil); err != nil {
		t.Fatalf("attach: %v", err)
	}
	h.loop.Drain()
	if !h.m.Ready() {
		t.Fatal("expected controller ready")
	}
	return h
}

func TestMapController_AttachReadyOnce(t *testing.T) {
	h := newHarness(t, usecases.Options{})

	var calls int
	var got *usecases.MapController
	err := h.m.Attach(func(m *usecases.MapController) {
		calls++
		got = m
	})
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if calls != 0 {
		t.Fatal("ready listener must run on the owner loop")
	}
	h.loop.Drain()

	if calls != 1 || got != h.m {
		t.Fatalf("expected one call with the controller, got %d calls, m=%p", calls, got)
	}

	if err := h.m.Attach(nil); !errors.Is(err, domain.ErrAlreadyAttached) {
		t.Errorf("expected ErrAlreadyAttached, got %v", err)
	}
}

func TestMapController_AttachFailure(t *testing.T) {
	h := newHarness(t, usecases.Options{})
	h.backend.InitErr = errors.New("no GL context")

	called := false
	var got *usecases.MapController
	_ = h.m.Attach(func(m *usecases.MapController) {
		called = true
		got = m
	})
	h.loop.Drain()

	if !called {
		t.Fatal("ready listener not called on failure")
	}
	if got != nil {
		t.Error("expected nil controller on failure")
	}
	if h.m.Ready() {
		t.Error("controller should not be ready")
	}
}

func TestMapController_ZoomToBoundingBox(t *testing.T) {
	h := attached(t)

	pts := []domain.GeoPoint{domain.NewGeoPoint(-1, -1), domain.NewGeoPoint(1, 1)}
	if err := h.m.ZoomToBoundingBox(pts, 0.8); err != nil {
		t.Fatalf("fit: %v", err)
	}

	cmd, ok := h.backend.Last(backend.OpFitBounds)
	if !ok {
		t.Fatal("expected fit_bounds command")
	}
	// The 2x2 box must take at most 80% of each viewport dimension.
	if w := cmd.Bounds.Width(); 2/w > 0.8+1e-9 {
		t.Errorf("box takes %.3f of width", 2/w)
	}
	if ht := cmd.Bounds.Height(); 2/ht > 0.8+1e-9 {
		t.Errorf("box takes %.3f of height", 2/ht)
	}
	// And the margin is evenly split.
	if cmd.Bounds.MinLat != -cmd.Bounds.MaxLat || cmd.Bounds.MinLon != -cmd.Bounds.MaxLon {
		t.Errorf("expected bounds centred on origin, got %+v", cmd.Bounds)
	}
	if math.Abs(cmd.Bounds.MaxLat-1.25) > 1e-9 {
		t.Errorf("expected max lat 1.25, got %v", cmd.Bounds.MaxLat)
	}
}

func TestMapController_ZoomToBoundingBoxInvalid(t *testing.T) {
	h := attached(t)
	one := []domain.GeoPoint{domain.NewGeoPoint(1, 1)}

	tests := []struct {
		name   string
		points []domain.GeoPoint
		scale  float64
	}{
		{"empty", nil, 0.8},
		{"zero scale", one, 0},
		{"negative scale", one, -0.5},
		{"scale above one", one, 1.01},
		{"nan scale", one, math.NaN()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.m.ZoomToBoundingBox(tt.points, tt.scale)
			if !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
	if _, ok := h.backend.Last(backend.OpFitBounds); ok {
		t.Error("invalid input must not reach the backend")
	}
}

func TestMapController_ZoomToBoundingBoxSinglePoint(t *testing.T) {
	h := attached(t)

	p := domain.NewGeoPoint(10, 20)
	if err := h.m.ZoomToBoundingBox([]domain.GeoPoint{p, p}, 1); err != nil {
		t.Fatalf("fit: %v", err)
	}
	cmd, ok := h.backend.Last(backend.OpZoomToPoint)
	if !ok {
		t.Fatal("expected zoom_to_point for a degenerate box")
	}
	if cmd.Point != p || cmd.Zoom != usecases.DefaultPointZoom {
		t.Errorf("unexpected command %+v", cmd)
	}
}

func TestMapController_Viewport(t *testing.T) {
	h := attached(t)

	if h.m.Zoom() != 3 {
		t.Errorf("expected initial zoom 3, got %v", h.m.Zoom())
	}

	h.m.ZoomToPoint(domain.NewGeoPoint(1, 2))
	if h.m.Zoom() != usecases.DefaultPointZoom {
		t.Errorf("expected zoom %d, got %v", usecases.DefaultPointZoom, h.m.Zoom())
	}

	h.m.ZoomToPointAt(domain.NewGeoPoint(3, 4), 11)
	h.m.SetCenter(domain.NewGeoPoint(5, 6))
	if c := h.m.Center(); c.Lat != 5 || c.Lon != 6 {
		t.Errorf("unexpected center %v", c)
	}
	if h.m.Zoom() != 11 {
		t.Errorf("SetCenter changed zoom to %v", h.m.Zoom())
	}
}

func TestMapController_CustomPointZoom(t *testing.T) {
	h := newHarness(t, usecases.Options{PointZoom: 12})

	h.m.ZoomToPoint(domain.NewGeoPoint(0, 0))
	cmd, _ := h.backend.Last(backend.OpZoomToPoint)
	if cmd.Zoom != 12 {
		t.Errorf("expected zoom 12, got %v", cmd.Zoom)
	}
}

func TestMapController_FeaturesReachBackend(t *testing.T) {
	h := attached(t)

	id, err := h.m.AddFeature([]domain.GeoPoint{domain.NewGeoPoint(0, 0)}, false)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := h.m.AppendVertex(id, domain.NewGeoPoint(1, 1)); err != nil {
		t.Fatalf("append: %v", err)
	}
	shown, ok := h.backend.Shown(id)
	if !ok || len(shown.Vertices) != 2 {
		t.Fatalf("expected redrawn feature with 2 vertices, got %+v", shown)
	}

	pt := h.m.AddPoint(domain.NewGeoPoint(4, 4))
	if h.backend.ShownCount() != 2 {
		t.Errorf("expected 2 shown, got %d", h.backend.ShownCount())
	}

	h.m.RemoveFeature(pt)
	h.m.RemoveFeature(pt)
	removes := 0
	for _, c := range h.backend.Commands() {
		if c.Op == backend.OpRemoveFeature {
			removes++
		}
	}
	if removes != 1 {
		t.Errorf("expected one remove command, got %d", removes)
	}

	h.m.ClearFeatures()
	if h.backend.ShownCount() != 0 || len(h.m.Features()) != 0 {
		t.Error("expected nothing left after clear")
	}
}

func TestMapController_AppendUnknownIsTolerant(t *testing.T) {
	h := attached(t)
	before := len(h.backend.Commands())

	err := h.m.AppendVertex(42, domain.NewGeoPoint(1, 1))
	if !errors.Is(err, domain.ErrUnknownFeature) {
		t.Errorf("expected ErrUnknownFeature, got %v", err)
	}
	if len(h.backend.Commands()) != before {
		t.Error("unknown feature must not produce render commands")
	}
	if v := h.m.Vertices(42); len(v) != 0 {
		t.Errorf("expected empty vertices, got %v", v)
	}
}

func TestMapController_GPSMarker(t *testing.T) {
	h := attached(t)
	if err := h.m.SetGPSEnabled(true); err != nil {
		t.Fatalf("enable: %v", err)
	}

	var order []string
	h.m.RunOnGPSReady(func(domain.GeoPoint) { order = append(order, "ready") })
	h.m.SetGPSListener(func(domain.GeoPoint) { order = append(order, "fix") })

	fix := domain.NewGeoPoint(43.26, -2.93).WithAccuracy(4)
	h.provider.emit(fix)
	h.loop.Drain()

	if len(order) != 2 || order[0] != "ready" || order[1] != "fix" {
		t.Errorf("expected [ready fix], got %v", order)
	}
	if loc := h.backend.Location(); loc == nil || *loc != fix {
		t.Errorf("expected marker at %v, got %v", fix, loc)
	}
	if h.m.GPSState() != usecases.EnabledHasFix {
		t.Errorf("unexpected state %v", h.m.GPSState())
	}

	_ = h.m.SetGPSEnabled(false)
	if h.backend.Location() != nil {
		t.Error("marker should be hidden when GPS is disabled")
	}
	if got, ok := h.m.GPSLocation(); !ok || got != fix {
		t.Error("last fix should survive disabling")
	}
}

func TestMapController_Gestures(t *testing.T) {
	h := attached(t)

	var clicks, presses []domain.GeoPoint
	h.m.SetClickListener(func(p domain.GeoPoint) { clicks = append(clicks, p) })
	h.m.SetLongPressListener(func(p domain.GeoPoint) { presses = append(presses, p) })

	h.backend.Tap(domain.NewGeoPoint(1, 1))
	h.backend.Press(domain.NewGeoPoint(2, 2))
	if len(clicks)+len(presses) != 0 {
		t.Fatal("gestures must be delivered on the owner loop")
	}
	h.loop.Drain()

	if len(clicks) != 1 || clicks[0].Lat != 1 {
		t.Errorf("unexpected clicks %v", clicks)
	}
	if len(presses) != 1 || presses[0].Lat != 2 {
		t.Errorf("unexpected presses %v", presses)
	}

	h.m.SetClickListener(nil)
	h.backend.Tap(domain.NewGeoPoint(3, 3))
	h.loop.Drain()
	if len(clicks) != 1 {
		t.Error("cleared click listener still fired")
	}
}

func TestMapController_ReleaseDropsLateEvents(t *testing.T) {
	h := attached(t)
	_ = h.m.SetGPSEnabled(true)

	fired := false
	h.m.RunOnGPSReady(func(domain.GeoPoint) { fired = true })
	h.m.SetClickListener(func(domain.GeoPoint) { fired = true })

	// Events already in flight when the surface is torn down.
	h.provider.emit(domain.NewGeoPoint(1, 1))
	h.backend.Tap(domain.NewGeoPoint(1, 1))
	h.m.Release()
	h.loop.Drain()

	if fired {
		t.Error("callback delivered after release")
	}
	if h.m.GPSEnabled() {
		t.Error("release should disable GPS")
	}
	if _, ok := h.backend.Last(backend.OpDetach); !ok {
		t.Error("expected backend detached")
	}

	h.m.RunOnGPSReady(func(domain.GeoPoint) { fired = true })
	if fired {
		t.Error("RunOnGPSReady after release should be ignored")
	}
}

func TestMapController_ReenableShowsLastFix(t *testing.T) {
	h := attached(t)
	_ = h.m.SetGPSEnabled(true)
	fix := domain.NewGeoPoint(5, 5)
	h.provider.emit(fix)
	h.loop.Drain()

	_ = h.m.SetGPSEnabled(false)
	if h.backend.Location() != nil {
		t.Fatal("marker should be hidden when GPS is disabled")
	}
	if err := h.m.SetGPSEnabled(true); err != nil {
		t.Fatalf("enable: %v", err)
	}
	if loc := h.backend.Location(); loc == nil || *loc != fix {
		t.Errorf("expected marker back at %v, got %v", fix, loc)
	}
}

// blindBackend cannot report its viewport, like a remote renderer.
type blindBackend struct {
	*backend.Headless
}

func (blindBackend) Center() (domain.GeoPoint, bool) { return domain.GeoPoint{}, false }
func (blindBackend) Zoom() (float64, bool) { return 0, false }

func TestMapController_FitUpdatesCachedViewport(t *testing.T) {
	loop := &queueDispatcher{}
	m := usecases.NewMapController(blindBackend{backend.NewHeadless(domain.Viewport{})}, &mockProvider{}, loop,
		usecases.Options{Initial: domain.Viewport{Zoom: 16}})

	pts := []domain.GeoPoint{domain.NewGeoPoint(10, 10), domain.NewGeoPoint(12, 14)}
	if err := m.ZoomToBoundingBox(pts, 1); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if c := m.Center(); c.Lat != 11 || c.Lon != 12 {
		t.Errorf("expected centre (11, 12), got %v", c)
	}
	// 4° wide, 2° tall.
	if z := m.Zoom(); math.Abs(z-math.Log2(90)) > 1e-9 {
		t.Errorf("expected zoom %v, got %v", math.Log2(90), z)
	}
}

func TestMapController_MutationsAfterRelease(t *testing.T) {
	h := attached(t)
	id, _ := h.m.AddFeature([]domain.GeoPoint{domain.NewGeoPoint(0, 0)}, false)
	h.m.Release()
	before := len(h.backend.Commands())

	if _, err := h.m.AddFeature([]domain.GeoPoint{domain.NewGeoPoint(1, 1)}, true); !errors.Is(err, domain.ErrReleased) {
		t.Errorf("add: expected ErrReleased, got %v", err)
	}
	if err := h.m.AppendVertex(id, domain.NewGeoPoint(1, 1)); !errors.Is(err, domain.ErrReleased) {
		t.Errorf("append: expected ErrReleased, got %v", err)
	}
	if err := h.m.SetGPSEnabled(true); !errors.Is(err, domain.ErrReleased) {
		t.Errorf("gps: expected ErrReleased, got %v", err)
	}
	if got := h.m.AddPoint(domain.NewGeoPoint(2, 2)); got != 0 {
		t.Errorf("add point: expected 0, got %d", got)
	}
	h.m.SetCenter(domain.NewGeoPoint(3, 3))
	h.m.ZoomToPoint(domain.NewGeoPoint(3, 3))
	_ = h.m.ZoomToBoundingBox([]domain.GeoPoint{domain.NewGeoPoint(0, 0), domain.NewGeoPoint(1, 1)}, 0.8)
	h.m.RemoveFeature(id)
	h.m.ClearFeatures()

	if n := len(h.backend.Commands()); n != before {
		t.Errorf("released controller sent %d commands", n-before)
	}
	if h.provider.starts != 0 {
		t.Error("released controller started the provider")
	}
}

func TestMapController_OnChange(t *testing.T) {
	changes := 0
	h := newHarness(t, usecases.Options{OnChange: func() { changes++ }})
	_ = h.m.Attach(nil)
	h.loop.Drain()

	expect := func(step string, want int) {
		t.Helper()
		if changes != want {
			t.Errorf("%s: expected %d changes, got %d", step, want, changes)
		}
	}

	id, _ := h.m.AddFeature([]domain.GeoPoint{domain.NewGeoPoint(0, 0)}, false)
	expect("add", 1)
	pt := h.m.AddPoint(domain.NewGeoPoint(1, 1))
	expect("add point", 2)
	_ = h.m.AppendVertex(id, domain.NewGeoPoint(2, 2))
	expect("append", 3)
	_ = h.m.AppendVertex(99, domain.NewGeoPoint(2, 2))
	expect("append unknown", 3)
	h.m.RemoveFeature(pt)
	expect("remove", 4)
	h.m.RemoveFeature(pt)
	expect("remove unknown", 4)

	_ = h.m.SetGPSEnabled(true)
	h.provider.emit(domain.NewGeoPoint(3, 3))
	h.loop.Drain()
	expect("fix", 5)

	h.m.ClearFeatures()
	expect("clear", 6)
	h.m.ClearFeatures()
	expect("clear empty", 6)

	h.m.Release()
	h.m.AddPoint(domain.NewGeoPoint(1, 1))
	expect("after release", 6)
}

func TestMapController_OwnerLoopMarshalsProviderFixes(t *testing.T) {
	loop := dispatch.New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)

	provider := &mockProvider{}
	var m *usecases.MapController

	const emitters, perEmitter = 8, 50

	// Plain counters: only the owner loop touches them, so the race
	// detector flags any callback that runs elsewhere.
	var fixes, changes, line int
	if err := loop.Call(ctx, func() {
		m = usecases.NewMapController(backend.NewHeadless(domain.Viewport{}), provider, loop,
			usecases.Options{OnChange: func() { changes++ }})
		_ = m.Attach(nil)
		line, _ = m.AddFeature([]domain.GeoPoint{domain.NewGeoPoint(0, 0)}, false)
		m.SetGPSListener(func(p domain.GeoPoint) {
			fixes++
			_ = m.AppendVertex(line, p)
		})
		if err := m.SetGPSEnabled(true); err != nil {
			t.Errorf("enable: %v", err)
		}
	}); err != nil {
		t.Fatalf("setup: %v", err)
	}

	var wg sync.WaitGroup
	for e := 0; e < emitters; e++ {
		wg.Add(1)
		go func(e int) {
			defer wg.Done()
			for i := 0; i < perEmitter; i++ {
				provider.emit(domain.NewGeoPoint(float64(e), float64(i)))
			}
		}(e)
	}
	wg.Wait()

	var vertices, gotFixes, gotChanges int
	if err := loop.Call(ctx, func() {
		vertices = len(m.Vertices(line))
		gotFixes, gotChanges = fixes, changes
	}); err != nil {
		t.Fatalf("read: %v", err)
	}

	total := emitters * perEmitter
	if gotFixes != total {
		t.Errorf("expected %d fixes, got %d", total, gotFixes)
	}
	if vertices != total+1 {
		t.Errorf("expected %d vertices, got %d", total+1, vertices)
	}
	// One for the trace, then an append and a recorded fix per fix.
	if want := 1 + 2*total; gotChanges != want {
		t.Errorf("expected %d changes, got %d", want, gotChanges)
	}
}
