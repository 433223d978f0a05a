package checkout

import (
	"fmt"
	"strings"
)

// Quote is the price of a single style unlock in one currency.
type Quote struct {
	Country    string `json:"country,omitempty"`
	Currency   string `json:"currency"`
	UnitAmount int64  `json:"unit_amount"`
}

// DefaultQuote applies when the caller's country has no dedicated price.
var DefaultQuote = Quote{Currency: "usd", UnitAmount: 499}

// zero-decimal currencies are charged in whole units.
var zeroDecimal = map[string]bool{"jpy": true, "krw": true, "vnd": true}

var euro = []string{"AT", "BE", "DE", "ES", "FI", "FR", "IE", "IT", "LU", "NL", "PT"}

// Pricing maps ISO country codes to quotes.
type Pricing struct {
	table map[string]Quote
}

// NewPricing builds the default regional price table.
func NewPricing() *Pricing {
	table := map[string]Quote{
		"GB": {Currency: "gbp", UnitAmount: 399},
		"CA": {Currency: "cad", UnitAmount: 649},
		"AU": {Currency: "aud", UnitAmount: 749},
		"JP": {Currency: "jpy", UnitAmount: 700},
		"IN": {Currency: "inr", UnitAmount: 19900},
		"ID": {Currency: "idr", UnitAmount: 4900000},
	}
	for _, c := range euro {
		table[c] = Quote{Currency: "eur", UnitAmount: 449}
	}
	return &Pricing{table: table}
}

// Quote returns the price for country, falling back to DefaultQuote.
func (p *Pricing) Quote(country string) Quote {
	country = strings.ToUpper(strings.TrimSpace(country))
	q, ok := p.table[country]
	if !ok {
		q = DefaultQuote
	}
	q.Country = country
	return q
}

// Display renders the amount for humans, e.g. "USD 4.99" or "JPY 700".
func (q Quote) Display() string {
	cur := strings.ToUpper(q.Currency)
	if zeroDecimal[strings.ToLower(q.Currency)] {
		return fmt.Sprintf("%s %d", cur, q.UnitAmount)
	}
	return fmt.Sprintf("%s %d.%02d", cur, q.UnitAmount/100, q.UnitAmount%100)
}
