package llm

import "context"

// ProviderName identifies a categorization provider tier.
type ProviderName string

const (
	ProviderOpenAI  ProviderName = "openai"
	ProviderMistral ProviderName = "mistral"
	ProviderLocal   ProviderName = "local"
)

// CategoryRequest carries the inputs for a chart-of-accounts assignment.
type CategoryRequest struct {
	SellerName  string
	Description string
	Amount      float64
	Currency    string
	// Provider forces a specific tier; empty means priority-order selection.
	Provider ProviderName
}

// Category is the normalized two-key categorization result.
type Category struct {
	SKR03Account string `json:"skr03_account"`
	Label        string `json:"category"`
}

// Categorizer is the capability interface every provider tier implements.
type Categorizer interface {
	Name() ProviderName
	Categorize(ctx context.Context, req CategoryRequest) (Category, error)
}
