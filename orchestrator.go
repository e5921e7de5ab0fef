package paideia

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/fogfish/opts"
	"github.com/paideia-ai/paideia/accounting"
	"github.com/paideia-ai/paideia/extract"
	"github.com/paideia-ai/paideia/internal/registry"
	"github.com/paideia-ai/paideia/pkg/aierr"
	"github.com/paideia-ai/paideia/pkg/slogx"
	"github.com/paideia-ai/paideia/provider"
)

const defaultMaxOutputTokens = 4096

// binding pairs a provider client with the profile that prices it.
type binding struct {
	client  provider.Provider
	profile provider.Profile
}

// Orchestrator routes generation requests to named provider backends, applies
// the ordered fallback policy, extracts structured output, and meters cost.
// It is safe for concurrent use; all configuration happens before first use.
type Orchestrator struct {
	providers        registry.Registry[binding]
	preferred        string
	defaultMaxTokens int
	ledger           *accounting.Ledger
}

// WithProvider registers a backend under the profile's name. The first
// registered provider becomes the preferred one unless WithPreferred says
// otherwise.
func WithProvider(client provider.Provider, profile provider.Profile) opts.Option[Orchestrator] {
	return opts.Type[Orchestrator](func(o *Orchestrator) error {
		if client == nil {
			return fmt.Errorf("provider client is required")
		}
		if profile.Name == "" {
			profile.Name = client.Name()
		}
		if _, exists := o.providers.Get(profile.Name); exists {
			return fmt.Errorf("provider %q is already registered", profile.Name)
		}
		o.providers.Add(profile.Name, binding{client: client, profile: profile})
		if o.preferred == "" {
			o.preferred = profile.Name
		}
		return nil
	})
}

// WithPreferred names the backend used when a call doesn't pick one itself.
var WithPreferred = opts.ForName[Orchestrator, string]("preferred")

// WithDefaultMaxTokens sets the output bound applied to requests that don't
// carry their own.
var WithDefaultMaxTokens = opts.ForName[Orchestrator, int]("defaultMaxTokens")

// WithLedger attaches a usage ledger. Every successful generation is recorded
// under the producing backend's name.
var WithLedger = opts.ForType[Orchestrator, *accounting.Ledger]()

// New creates an orchestrator from the given options. At least one provider
// must be registered.
func New(options ...opts.Option[Orchestrator]) (*Orchestrator, error) {
	o := &Orchestrator{
		providers:        registry.New[binding](),
		defaultMaxTokens: defaultMaxOutputTokens,
	}
	if err := opts.Apply(o, options); err != nil {
		return nil, err
	}
	if len(o.providers.Names()) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}
	if _, ok := o.providers.Get(o.preferred); !ok {
		return nil, fmt.Errorf("preferred provider %q is not registered", o.preferred)
	}
	return o, nil
}

// Providers returns the registered backend names.
func (o *Orchestrator) Providers() []string {
	return o.providers.Names()
}

// Profile returns the pricing profile of a registered backend.
func (o *Orchestrator) Profile(name string) (provider.Profile, bool) {
	b, ok := o.providers.Get(name)
	if !ok {
		return provider.Profile{}, false
	}
	return b.profile, true
}

// CallOption adjusts a single Generate or Stream call.
type CallOption func(*callConfig)

type callConfig struct {
	provider string
	fallback string
}

// OnProvider routes this call to the named backend instead of the preferred one.
func OnProvider(name string) CallOption {
	return func(c *callConfig) { c.provider = name }
}

// WithFallback names a second backend to try when the first fails with a
// retryable error. Auth and output-shape failures never fall back.
func WithFallback(name string) CallOption {
	return func(c *callConfig) { c.fallback = name }
}

func (o *Orchestrator) resolve(c callConfig) (binding, error) {
	name := c.provider
	if name == "" {
		name = o.preferred
	}
	b, ok := o.providers.Get(name)
	if !ok {
		return binding{}, fmt.Errorf("provider %q is not registered", name)
	}
	return b, nil
}

func (o *Orchestrator) prepare(req provider.Request) provider.Request {
	if req.MaxOutputTokens == 0 {
		req.MaxOutputTokens = o.defaultMaxTokens
	}
	return req
}

// Generate runs one non-streaming generation. The request goes to the resolved
// backend; when that fails with a retryable error and a fallback was named,
// the same request is retried once on the fallback. On success the output is
// extracted per the request's shape, and the result carries the producing
// backend's name and metered cost.
//
// When both backends fail, the returned error is the primary's, annotated with
// the fallback outcome, so classification of the original failure survives
// errors.As.
func (o *Orchestrator) Generate(ctx context.Context, req provider.Request, options ...CallOption) (*provider.Result, error) {
	var cfg callConfig
	for _, opt := range options {
		opt(&cfg)
	}

	primary, err := o.resolve(cfg)
	if err != nil {
		return nil, err
	}
	req = o.prepare(req)

	res, callErr := primary.client.Complete(ctx, req)
	if callErr == nil {
		return o.finish(primary, req, res)
	}
	if cfg.fallback == "" || !aierr.IsRetryable(callErr) {
		return nil, callErr
	}

	fb, ok := o.providers.Get(cfg.fallback)
	if !ok {
		return nil, fmt.Errorf("fallback provider %q is not registered: %w", cfg.fallback, callErr)
	}
	slog.Info("falling back after retryable failure",
		slogx.Provider(primary.profile.Name),
		slog.String("fallback", fb.profile.Name),
		slogx.Error(callErr))

	res, fbErr := fb.client.Complete(ctx, req)
	if fbErr != nil {
		return nil, fmt.Errorf("%w (fallback %q also failed: %v)", callErr, fb.profile.Name, fbErr)
	}
	return o.finish(fb, req, res)
}

// finish applies extraction and cost metering to a successful completion.
func (o *Orchestrator) finish(b binding, req provider.Request, res *provider.Result) (*provider.Result, error) {
	res.Provider = b.profile.Name
	if res.Model == "" {
		res.Model = b.profile.Model
	}
	res.CostUSD = b.profile.Cost(res.Usage)
	if o.ledger != nil {
		o.ledger.Record(b.profile.Name, res.Usage, res.CostUSD)
	}

	if req.Shape == provider.ShapeJSONObject || req.Shape == provider.ShapeJSONArray {
		parsed, err := extract.Extract(res.Text, req.Shape)
		if err != nil {
			var aie *aierr.Error
			if errors.As(err, &aie) {
				return nil, aie.WithProvider(b.profile.Name)
			}
			return nil, err
		}
		res.Parsed = parsed
	}
	return res, nil
}

// Stream runs one streaming generation on the resolved backend. Fallback does
// not apply to streams: once tokens may have been delivered there is no way to
// restart transparently, so stream failures surface as Error events.
//
// Stream satisfies session.Streamer, which is how the session registry drives
// live conversations through the orchestrator.
func (o *Orchestrator) Stream(ctx context.Context, req provider.Request, options ...CallOption) (<-chan provider.StreamEvent, error) {
	var cfg callConfig
	for _, opt := range options {
		opt(&cfg)
	}
	b, err := o.resolve(cfg)
	if err != nil {
		return nil, err
	}
	return b.client.Stream(ctx, o.prepare(req))
}
