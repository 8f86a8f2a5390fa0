// Package capture moves tracked query parameters from incoming requests into
// the visitor's session store.
package capture

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/conneroisu/paramtrail/internal/codec"
	"github.com/conneroisu/paramtrail/internal/logging"
	"github.com/conneroisu/paramtrail/internal/metrics"
	"github.com/conneroisu/paramtrail/internal/params"
	"github.com/conneroisu/paramtrail/internal/sanitize"
	"github.com/conneroisu/paramtrail/internal/session"
)

// Setter is the write side of a session store.
type Setter interface {
	Set(name, value string)
}

// Event describes one value written by the pipeline.
type Event struct {
	Parameter   string    `json:"parameter"`
	IncomingKey string    `json:"incoming_key"`
	Value       string    `json:"value"`
	Decoded     bool      `json:"decoded"`
	Source      string    `json:"source"`
	Time        time.Time `json:"time"`
}

// Observer is notified after each write.
type Observer func(ctx context.Context, event Event)

// Pipeline resolves, decodes and sanitizes incoming values.
type Pipeline struct {
	source    *params.Source
	logger    logging.Logger
	metrics   *metrics.Metrics
	observers []Observer
	now       func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithObserver adds an observer.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observers = append(p.observers, o) }
}

// NewPipeline returns a pipeline reading the registry from source.
func NewPipeline(source *params.Source, opts ...Option) *Pipeline {
	p := &Pipeline{
		source: source,
		logger: logging.NewNopLogger(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithComponent("capture")
	return p
}

// Capture writes every tracked parameter present in query into store.
//
// Only registry keys are consulted, so unrelated query parameters are
// ignored. When a request carries both a name and its alias, the alias is
// processed second and its value is the one kept. Values that are empty
// before or after sanitizing are skipped.
func (p *Pipeline) Capture(ctx context.Context, query url.Values, store Setter) {
	if store == nil || len(query) == 0 {
		return
	}
	reg := p.source.Current()

	for _, key := range reg.IncomingKeys() {
		raw := query.Get(key)
		if raw == "" {
			continue
		}
		canonical, _ := reg.Resolve(key)
		p.write(ctx, reg, store, canonical, key, raw, "query")
	}
}

// Assign writes one value through the same resolve, decode and sanitize
// steps as Capture. Form-submission adapters use it in place of a raw Set.
// It reports whether key named a tracked parameter and a value was stored.
func (p *Pipeline) Assign(ctx context.Context, store Setter, key, raw string) bool {
	if store == nil || raw == "" {
		return false
	}
	reg := p.source.Current()
	canonical, ok := reg.Resolve(key)
	if !ok {
		return false
	}
	return p.write(ctx, reg, store, canonical, key, raw, "form")
}

func (p *Pipeline) write(ctx context.Context, reg *params.Registry, store Setter, canonical, key, raw, origin string) bool {
	value := raw
	decoded := false
	if reg.ObfuscationEnabled() {
		value, decoded = codec.TryDecode(raw, reg.SecretKey())
		if !decoded {
			p.metrics.DecodeFallback(canonical)
			p.logger.Debug(ctx, "Value is not a valid token, keeping it literally",
				"parameter", canonical,
				"incoming_key", key,
				"value", logging.SanitizeForLog(raw))
		}
	}

	value = sanitize.Text(value)
	if value == "" {
		return false
	}

	store.Set(canonical, value)
	p.metrics.Captured(canonical)
	p.logger.Debug(ctx, "Captured parameter",
		"parameter", canonical,
		"source", origin,
		"value", logging.SanitizeForLog(value))

	event := Event{
		Parameter:   canonical,
		IncomingKey: key,
		Value:       value,
		Decoded:     decoded,
		Source:      origin,
		Time:        p.now(),
	}
	for _, o := range p.observers {
		o(ctx, event)
	}

	return true
}

// Middleware runs Capture on every request that carries a session store in
// its context. It must sit inside session.Manager.Middleware.
func Middleware(p *Pipeline) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			store, ok := session.FromContext(r.Context())
			if !ok {
				p.logger.Warn(r.Context(), nil, "No session store on request, skipping capture",
					"path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}
			p.Capture(r.Context(), r.URL.Query(), store)
			next.ServeHTTP(w, r)
		})
	}
}
