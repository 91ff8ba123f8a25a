package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/belegwerk/einvoice/internal/common"
)

// Router selects a categorization provider: explicit caller choice, else the
// first configured hosted tier in priority order, else the local model. A
// failed hosted call is never retried; the router fails over immediately.
// Only the local tier's failure surfaces to the caller.
type Router struct {
	hosted    []Categorizer
	local     Categorizer
	breakers  map[ProviderName]*gobreaker.CircuitBreaker[Category]
	limiter   *rate.Limiter
	onFailure func(provider string)
	log       *slog.Logger
}

// RouterOption configures the router.
type RouterOption func(*Router)

// WithHostedRateLimit bounds hosted calls per second. Zero disables limiting.
func WithHostedRateLimit(perSecond float64) RouterOption {
	return func(r *Router) {
		if perSecond > 0 {
			r.limiter = rate.NewLimiter(rate.Limit(perSecond), int(perSecond)+1)
		}
	}
}

// WithFailureObserver reports every provider failure, named by provider, to
// the given callback. Used to feed the failure counter metric.
func WithFailureObserver(fn func(provider string)) RouterOption {
	return func(r *Router) {
		r.onFailure = fn
	}
}

// NewRouter wires hosted tiers (priority order) ahead of the mandatory local
// tier. Each hosted tier gets its own circuit breaker so a flapping provider
// fails fast instead of burning its timeout on every document.
func NewRouter(hosted []Categorizer, local Categorizer, logger *slog.Logger, opts ...RouterOption) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		hosted:   hosted,
		local:    local,
		breakers: make(map[ProviderName]*gobreaker.CircuitBreaker[Category], len(hosted)),
		log:      logger,
	}
	for _, o := range opts {
		o(r)
	}
	for _, h := range hosted {
		name := h.Name()
		r.breakers[name] = gobreaker.NewCircuitBreaker[Category](gobreaker.Settings{
			Name:    string(name),
			Timeout: 30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.Requests >= 3 && counts.TotalFailures*2 >= counts.Requests
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("llm.router.breaker_state", "provider", name, "from", from.String(), "to", to.String())
			},
		})
	}
	return r
}

// Categorize runs the fallback chain. The returned error always carries the
// ProviderFailure kind and is only non-nil when the local tier itself failed.
func (r *Router) Categorize(ctx context.Context, req CategoryRequest) (Category, error) {
	for _, tier := range r.chainFor(req.Provider) {
		if tier != r.local {
			cat, err := r.callHosted(ctx, tier, req)
			if err != nil {
				r.reportFailure(tier.Name())
				r.log.Warn("llm.router.failover", "provider", tier.Name(), "error", err)
				continue
			}
			return cat, nil
		}

		cat, err := r.local.Categorize(ctx, req)
		if err != nil {
			r.reportFailure(ProviderLocal)
			r.log.Error("llm.router.local_failed", "error", err)
			return Category{}, common.WrapKind(common.ErrProviderFailure, "llm.categorize", err)
		}
		return cat, nil
	}
	return Category{}, common.WrapKind(common.ErrProviderFailure, "llm.categorize",
		fmt.Errorf("no provider configured"))
}

func (r *Router) reportFailure(provider ProviderName) {
	if r.onFailure != nil {
		r.onFailure(string(provider))
	}
}

func (r *Router) callHosted(ctx context.Context, tier Categorizer, req CategoryRequest) (Category, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return Category{}, err
		}
	}
	breaker, ok := r.breakers[tier.Name()]
	if !ok {
		return tier.Categorize(ctx, req)
	}
	return breaker.Execute(func() (Category, error) {
		return tier.Categorize(ctx, req)
	})
}

// chainFor resolves the tiers to try. At most one hosted tier is in play:
// the explicitly chosen one, else the first configured one. A hosted failure
// falls back straight to the local model, never to another hosted tier. An
// explicit local choice skips the hosted tiers entirely.
func (r *Router) chainFor(choice ProviderName) []Categorizer {
	if choice == ProviderLocal {
		return []Categorizer{r.local}
	}
	if choice != "" {
		for _, h := range r.hosted {
			if h.Name() == choice {
				return []Categorizer{h, r.local}
			}
		}
		return []Categorizer{r.local}
	}
	if len(r.hosted) > 0 {
		return []Categorizer{r.hosted[0], r.local}
	}
	return []Categorizer{r.local}
}
