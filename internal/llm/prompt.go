package llm

import (
	"fmt"
	"strings"

	"github.com/belegwerk/einvoice/constants"
)

// BuildCategoryPrompt renders the templated categorization prompt. Every
// provider tier receives the same prompt text.
func BuildCategoryPrompt(req CategoryRequest) string {
	currency := req.Currency
	if currency == "" {
		currency = "EUR"
	}
	var b strings.Builder
	b.WriteString("You are a German bookkeeping assistant. Assign an SKR03 expense account to an invoice.\n")
	b.WriteString("Known accounts: " + strings.Join(constants.KnownAccounts(), ", ") + ".\n")
	b.WriteString("Return ONLY a JSON object with exactly two keys: \"skr03_account\" (the account code) and \"category\" (a short human-readable label).\n\n")
	fmt.Fprintf(&b, "Seller: %s\n", req.SellerName)
	fmt.Fprintf(&b, "Description: %s\n", req.Description)
	fmt.Fprintf(&b, "Amount: %.2f %s\n", req.Amount, currency)
	return b.String()
}
