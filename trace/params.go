package trace

import "fmt"

// TraceParams bounds per-span storage and carries the default sampler.
// Defaults: 32 attributes, 32 annotations, 128 network events, 128
// links, never-sample.
type TraceParams struct {
	MaxAttributes    int
	MaxAnnotations   int
	MaxNetworkEvents int
	MaxLinks         int
	DefaultSampler   Sampler
}

// DefaultTraceParams returns the built-in defaults.
func DefaultTraceParams() TraceParams {
	return TraceParams{
		MaxAttributes:    32,
		MaxAnnotations:   32,
		MaxNetworkEvents: 128,
		MaxLinks:         128,
		DefaultSampler:   NeverSample(),
	}
}

// withDefaults fills any zero-valued bound in p with the corresponding
// default, so WithTraceParams callers can override just the fields
// they care about (e.g. only DefaultSampler).
func (p TraceParams) withDefaults() TraceParams {
	d := DefaultTraceParams()
	if p.MaxAttributes == 0 {
		p.MaxAttributes = d.MaxAttributes
	}
	if p.MaxAnnotations == 0 {
		p.MaxAnnotations = d.MaxAnnotations
	}
	if p.MaxNetworkEvents == 0 {
		p.MaxNetworkEvents = d.MaxNetworkEvents
	}
	if p.MaxLinks == 0 {
		p.MaxLinks = d.MaxLinks
	}
	if p.DefaultSampler == nil {
		p.DefaultSampler = d.DefaultSampler
	}
	return p
}

// validate reports ErrInvalidTraceParams if p cannot back a working
// Tracer: every bound must allow at least one recorded item, and a
// sampler must be set. Call after withDefaults so an omitted field
// never trips this check.
func (p TraceParams) validate() error {
	switch {
	case p.MaxAttributes < 0:
		return fmt.Errorf("%w: MaxAttributes must not be negative, got %d", ErrInvalidTraceParams, p.MaxAttributes)
	case p.MaxAnnotations < 0:
		return fmt.Errorf("%w: MaxAnnotations must not be negative, got %d", ErrInvalidTraceParams, p.MaxAnnotations)
	case p.MaxNetworkEvents < 0:
		return fmt.Errorf("%w: MaxNetworkEvents must not be negative, got %d", ErrInvalidTraceParams, p.MaxNetworkEvents)
	case p.MaxLinks < 0:
		return fmt.Errorf("%w: MaxLinks must not be negative, got %d", ErrInvalidTraceParams, p.MaxLinks)
	case p.DefaultSampler == nil:
		return fmt.Errorf("%w: DefaultSampler must not be nil", ErrInvalidTraceParams)
	}
	return nil
}
