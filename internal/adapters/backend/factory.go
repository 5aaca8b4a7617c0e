// Package backend selects a rendering backend by kind.
package backend

import (
	"fmt"

	"github.com/nats-io/nats.go"

	natsadapter "github.com/samirrijal/fieldmap/internal/adapters/nats"
	"github.com/samirrijal/fieldmap/internal/core/domain"
	"github.com/samirrijal/fieldmap/internal/core/ports"
)

// Kind names a rendering backend implementation.
type Kind string

const (
	KindHeadless Kind = "headless"
	KindNATS     Kind = "nats"
)

// Kinds lists every supported backend.
var Kinds = []Kind{KindHeadless, KindNATS}

// Options configures the backend New builds. Fields that do not apply to
// the chosen kind are ignored.
type Options struct {
	// Initial viewport of a headless backend.
	Initial domain.Viewport
	// InitErr makes a headless backend fail to initialise.
	InitErr error

	// Conn and Prefix configure the NATS backend.
	Conn   *nats.Conn
	Prefix string
}

// New builds the backend for kind.
func New(kind Kind, opts Options) (ports.RenderBackend, error) {
	switch kind {
	case KindHeadless:
		h := NewHeadless(opts.Initial)
		h.InitErr = opts.InitErr
		return h, nil
	case KindNATS:
		return natsadapter.NewRenderBackend(opts.Conn, opts.Prefix), nil
	default:
		return nil, fmt.Errorf("%w: unknown map backend %q", domain.ErrInvalidInput, kind)
	}
}
