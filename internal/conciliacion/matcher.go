package conciliacion

import "strings"

// Matcher decides whether a local payment-method name and an external-ledger
// payment-method name refer to the same category. The external naming is not
// under our control, so the strategy is injected.
type Matcher interface {
	Coincide(local, externo string) bool
}

// SubstringMatcher treats two names as the same category when either one,
// upper-cased and trimmed, contains the other ("PAYWAY" ~ "Payway Integrado").
type SubstringMatcher struct{}

func (SubstringMatcher) Coincide(local, externo string) bool {
	l := strings.ToUpper(strings.TrimSpace(local))
	e := strings.ToUpper(strings.TrimSpace(externo))
	if l == "" || e == "" {
		return false
	}
	return strings.Contains(l, e) || strings.Contains(e, l)
}

// MatcherFunc adapts a plain function to Matcher.
type MatcherFunc func(local, externo string) bool

func (f MatcherFunc) Coincide(local, externo string) bool { return f(local, externo) }
