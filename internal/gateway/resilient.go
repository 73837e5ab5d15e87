package gateway

import (
	"context"

	"github.com/sells-group/prospectkeeper/internal/resilience"
)

// Per-service breaker names. One vendor melting down must not block the
// others.
const (
	serviceZeroBounce = "zerobounce"
	serviceJina       = "jina"
	serviceAnthropic  = "anthropic"
)

// WrapResilient decorates the remote gateways with retry and per-service
// circuit breakers. The profile verifier runs a local browser and the
// confirmation sender is not idempotent, so neither is wrapped: a duplicate
// confirmation email is worse than a missed one.
func WrapResilient(set Set, retry resilience.RetryConfig, breakers *resilience.ServiceBreakers) Set {
	if set.Email != nil {
		set.Email = &resilientEmail{inner: set.Email, retry: retry, cb: breakers.Get(serviceZeroBounce)}
	}
	if set.Website != nil {
		set.Website = &resilientWebsite{inner: set.Website, retry: retry, cb: breakers.Get(serviceJina)}
	}
	if set.Research != nil {
		set.Research = &resilientResearch{inner: set.Research, retry: retry, cb: breakers.Get(serviceAnthropic)}
	}
	return set
}

type resilientEmail struct {
	inner EmailValidator
	retry resilience.RetryConfig
	cb    *resilience.CircuitBreaker
}

func (r *resilientEmail) Validate(ctx context.Context, email string) (EmailValidationResult, error) {
	cfg := r.retry
	cfg.OnRetry = resilience.RetryLogger(serviceZeroBounce, "validate")
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (EmailValidationResult, error) {
		return resilience.ExecuteVal(ctx, r.cb, func(ctx context.Context) (EmailValidationResult, error) {
			return r.inner.Validate(ctx, email)
		})
	})
}

type resilientWebsite struct {
	inner WebsitePresence
	retry resilience.RetryConfig
	cb    *resilience.CircuitBreaker
}

func (r *resilientWebsite) FindOnSite(ctx context.Context, name, organization, website string) (WebsiteResult, error) {
	cfg := r.retry
	cfg.OnRetry = resilience.RetryLogger(serviceJina, "find_on_site")
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (WebsiteResult, error) {
		return resilience.ExecuteVal(ctx, r.cb, func(ctx context.Context) (WebsiteResult, error) {
			return r.inner.FindOnSite(ctx, name, organization, website)
		})
	})
}

type resilientResearch struct {
	inner Researcher
	retry resilience.RetryConfig
	cb    *resilience.CircuitBreaker
}

func (r *resilientResearch) Research(ctx context.Context, req ResearchRequest) (ResearchResult, error) {
	cfg := r.retry
	cfg.OnRetry = resilience.RetryLogger(serviceAnthropic, "research")
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (ResearchResult, error) {
		return resilience.ExecuteVal(ctx, r.cb, func(ctx context.Context) (ResearchResult, error) {
			return r.inner.Research(ctx, req)
		})
	})
}
