// Package fetch performs single HTTP retrievals with evasion-aware headers,
// cookie persistence, and request pacing, and classifies failures so callers
// can decide whether to retry, cool down, or give up.
package fetch

// Profile is the set of browser-imitating headers sent with every request
// to a source. Sources that block obvious bots get a per-source profile in
// config; the default mirrors a desktop Chrome session.
type Profile struct {
	UserAgent      string
	AcceptLanguage string
	Referrer       string
	Headers        map[string]string // extra headers, applied last
}

// DefaultProfile returns the stock desktop-browser header set.
func DefaultProfile() Profile {
	return Profile{
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
			"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		AcceptLanguage: "en-US,en;q=0.9",
	}
}

// merged returns p with zero fields filled from the default profile.
func (p Profile) merged() Profile {
	def := DefaultProfile()
	if p.UserAgent == "" {
		p.UserAgent = def.UserAgent
	}
	if p.AcceptLanguage == "" {
		p.AcceptLanguage = def.AcceptLanguage
	}
	return p
}
