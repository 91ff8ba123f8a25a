package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/belegwerk/einvoice/internal/common"
)

type stubProvider struct {
	name  ProviderName
	cat   Category
	err   error
	calls int
}

func (s *stubProvider) Name() ProviderName { return s.name }

func (s *stubProvider) Categorize(_ context.Context, _ CategoryRequest) (Category, error) {
	s.calls++
	return s.cat, s.err
}

func TestRouterFallsBackToLocalOnHostedFailure(t *testing.T) {
	hosted := &stubProvider{name: ProviderOpenAI, err: errors.New("connection refused")}
	local := &stubProvider{name: ProviderLocal, cat: Category{SKR03Account: "4400", Label: "Buerokosten"}}
	r := NewRouter([]Categorizer{hosted}, local, nil)

	cat, err := r.Categorize(context.Background(), CategoryRequest{SellerName: "Staples"})
	if err != nil {
		t.Fatalf("Categorize() error = %v, fallback must absorb hosted failures", err)
	}
	if cat.SKR03Account != "4400" {
		t.Fatalf("account = %q, want local result", cat.SKR03Account)
	}
	if hosted.calls != 1 {
		t.Fatalf("hosted called %d times, want exactly 1 (no retry)", hosted.calls)
	}
}

func TestRouterHostedPriorityOrder(t *testing.T) {
	first := &stubProvider{name: ProviderOpenAI, cat: Category{SKR03Account: "4930", Label: "Buerobedarf"}}
	second := &stubProvider{name: ProviderMistral, cat: Category{SKR03Account: "4900", Label: "Sonstige"}}
	local := &stubProvider{name: ProviderLocal}
	r := NewRouter([]Categorizer{first, second}, local, nil)

	cat, err := r.Categorize(context.Background(), CategoryRequest{})
	if err != nil {
		t.Fatalf("Categorize() error = %v", err)
	}
	if cat.SKR03Account != "4930" {
		t.Fatalf("account = %q, want first hosted tier's result", cat.SKR03Account)
	}
	if second.calls != 0 || local.calls != 0 {
		t.Fatalf("lower tiers must not be called when the first succeeds")
	}
}

func TestRouterHostedFailureSkipsOtherHostedTiers(t *testing.T) {
	first := &stubProvider{name: ProviderOpenAI, err: errors.New("status 503")}
	second := &stubProvider{name: ProviderMistral, cat: Category{SKR03Account: "4900", Label: "Sonstige"}}
	local := &stubProvider{name: ProviderLocal, cat: Category{SKR03Account: "4400", Label: "Buerokosten"}}
	r := NewRouter([]Categorizer{first, second}, local, nil)

	cat, err := r.Categorize(context.Background(), CategoryRequest{})
	if err != nil {
		t.Fatalf("Categorize() error = %v", err)
	}
	if second.calls != 0 {
		t.Fatalf("failover must go straight to local, second hosted tier was called %d times", second.calls)
	}
	if local.calls != 1 || cat.SKR03Account != "4400" {
		t.Fatalf("local must serve the fallback, got %+v (local calls %d)", cat, local.calls)
	}
}

func TestRouterExplicitLocalChoiceSkipsHosted(t *testing.T) {
	hosted := &stubProvider{name: ProviderOpenAI, cat: Category{SKR03Account: "4930", Label: "x"}}
	local := &stubProvider{name: ProviderLocal, cat: Category{SKR03Account: "4900", Label: "y"}}
	r := NewRouter([]Categorizer{hosted}, local, nil)

	cat, err := r.Categorize(context.Background(), CategoryRequest{Provider: ProviderLocal})
	if err != nil {
		t.Fatalf("Categorize() error = %v", err)
	}
	if cat.SKR03Account != "4900" || hosted.calls != 0 {
		t.Fatalf("explicit local choice must bypass hosted tiers")
	}
}

func TestRouterReportsFailuresToObserver(t *testing.T) {
	hosted := &stubProvider{name: ProviderOpenAI, err: errors.New("status 502")}
	local := &stubProvider{name: ProviderLocal, err: errors.New("model not loaded")}
	var reported []string
	r := NewRouter([]Categorizer{hosted}, local, nil,
		WithFailureObserver(func(provider string) { reported = append(reported, provider) }))

	_, err := r.Categorize(context.Background(), CategoryRequest{})
	if err == nil {
		t.Fatal("expected the local failure to surface")
	}
	if len(reported) != 2 || reported[0] != string(ProviderOpenAI) || reported[1] != string(ProviderLocal) {
		t.Fatalf("reported = %v", reported)
	}
}

func TestRouterLocalFailureIsFatal(t *testing.T) {
	hosted := &stubProvider{name: ProviderOpenAI, err: errors.New("boom")}
	local := &stubProvider{name: ProviderLocal, err: errors.New("model not loaded")}
	r := NewRouter([]Categorizer{hosted}, local, nil)

	_, err := r.Categorize(context.Background(), CategoryRequest{})
	if !common.IsKind(err, common.ErrProviderFailure) {
		t.Fatalf("expected ErrProviderFailure, got %v", err)
	}
}

// With the primary provider raising, the same inputs routed to the local
// path still yield a two-key object with a non-empty account.
func TestRouterStaplesScenario(t *testing.T) {
	hosted := &stubProvider{name: ProviderOpenAI, err: fmt.Errorf("status 503")}
	local := &stubProvider{name: ProviderLocal, cat: Category{SKR03Account: "4400", Label: "Buerokosten"}}
	r := NewRouter([]Categorizer{hosted}, local, nil)

	cat, err := r.Categorize(context.Background(), CategoryRequest{
		SellerName:  "Staples",
		Description: "Bueroartikel",
		Amount:      59.99,
	})
	if err != nil {
		t.Fatalf("Categorize() error = %v", err)
	}
	if cat.SKR03Account == "" || cat.Label == "" {
		t.Fatalf("fallback result incomplete: %+v", cat)
	}
	if cat.SKR03Account != "4400" || cat.Label != "Buerokosten" {
		t.Fatalf("got %+v", cat)
	}
}

func TestParseCategoryRejectsWrongShapes(t *testing.T) {
	bad := [][]byte{
		[]byte(`{"skr03_account":"4400"}`),
		[]byte(`{"skr03_account":"abc","category":"x"}`),
		[]byte(`{"skr03_account":"4400","category":"x","extra":1}`),
		[]byte(`not json`),
		[]byte(`{"category":"x"}`),
	}
	for _, b := range bad {
		if _, err := parseCategory(b); err == nil {
			t.Fatalf("parseCategory(%s) accepted invalid shape", b)
		}
	}
	cat, err := parseCategory([]byte(`{"skr03_account":"4400","category":"Buerokosten"}`))
	if err != nil {
		t.Fatalf("parseCategory() error = %v", err)
	}
	if cat.SKR03Account != "4400" || cat.Label != "Buerokosten" {
		t.Fatalf("got %+v", cat)
	}
}
