package constants

import "strings"

// SKR03Account is a chart-of-accounts code used for bookkeeping categorization.
type SKR03Account string

const (
	AccountWareneingang     SKR03Account = "3400" // Wareneingang 19% Vorsteuer
	AccountBuerokosten      SKR03Account = "4400" // Buerokosten
	AccountPorto            SKR03Account = "4910" // Porto
	AccountTelefon          SKR03Account = "4920" // Telefon
	AccountBuerobedarf      SKR03Account = "4930" // Buerobedarf
	AccountZeitschriften    SKR03Account = "4940" // Zeitschriften, Buecher
	AccountFortbildung      SKR03Account = "4945" // Fortbildungskosten
	AccountRechtsberatung   SKR03Account = "4950" // Rechts- und Beratungskosten
	AccountMiete            SKR03Account = "4210" // Miete
	AccountReisekosten      SKR03Account = "4670" // Reisekosten Unternehmer
	AccountBewirtung        SKR03Account = "4650" // Bewirtungskosten
	AccountKfzKosten        SKR03Account = "4530" // Laufende Kfz-Betriebskosten
	AccountWerbung          SKR03Account = "4600" // Werbekosten
	AccountSonstigeAufwand  SKR03Account = "4900" // Sonstige betriebliche Aufwendungen
	AccountSoftwareLizenzen SKR03Account = "4964" // Aufwendungen fuer Lizenzen
)

// accountLabels maps each known account to its human-readable category label.
var accountLabels = map[SKR03Account]string{
	AccountWareneingang:     "Wareneingang",
	AccountBuerokosten:      "Buerokosten",
	AccountPorto:            "Porto",
	AccountTelefon:          "Telefon",
	AccountBuerobedarf:      "Buerobedarf",
	AccountZeitschriften:    "Zeitschriften und Buecher",
	AccountFortbildung:      "Fortbildungskosten",
	AccountRechtsberatung:   "Rechts- und Beratungskosten",
	AccountMiete:            "Miete",
	AccountReisekosten:      "Reisekosten",
	AccountBewirtung:        "Bewirtungskosten",
	AccountKfzKosten:        "Kfz-Kosten",
	AccountWerbung:          "Werbekosten",
	AccountSonstigeAufwand:  "Sonstige Aufwendungen",
	AccountSoftwareLizenzen: "Softwarelizenzen",
}

// KnownAccounts returns the catalogue as account codes, stable order not guaranteed.
func KnownAccounts() []string {
	out := make([]string, 0, len(accountLabels))
	for acc := range accountLabels {
		out = append(out, string(acc))
	}
	return out
}

// LookupAccount returns the canonical label for a code, if the code is known.
func LookupAccount(code string) (string, bool) {
	label, ok := accountLabels[SKR03Account(strings.TrimSpace(code))]
	return label, ok
}

// FallbackAccount is used when categorization yields no usable account.
var FallbackAccount = AccountSonstigeAufwand
