// Package validate decides whether search evidence supports an event's
// claimed date: the differential and trust-scored strategies and the source
// domain classification they share.
package validate

import (
	"net/url"
	"strings"

	"github.com/ppiankov/almanac/internal/model"
)

// DomainClassifier classifies source hosts against the configured lists
type DomainClassifier struct {
	highTrust  []string
	historical []string
	allowed    []string
}

// NewDomainClassifier creates a classifier. Empty configuration uses the
// shipped lists.
func NewDomainClassifier(config model.DomainConfig) *DomainClassifier {
	if len(config.HighTrust) == 0 && len(config.Historical) == 0 && len(config.Allowed) == 0 {
		config = model.DefaultDomains()
	}
	return &DomainClassifier{
		highTrust:  lowerAll(config.HighTrust),
		historical: lowerAll(config.Historical),
		allowed:    lowerAll(config.Allowed),
	}
}

// Classify classifies a URL by its host. A host belongs to a list when it
// contains one of the list's entries, so ".gov" matches every government
// host and "bbc.co.uk" matches "www.bbc.co.uk".
func (d *DomainClassifier) Classify(rawURL string) model.DomainClass {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return model.DomainUnscored
	}
	host := strings.ToLower(parsed.Hostname())
	if host == "" {
		return model.DomainUnscored
	}

	switch {
	case containsAny(host, d.highTrust):
		return model.DomainHighTrust
	case containsAny(host, d.historical):
		return model.DomainHistorical
	case containsAny(host, d.allowed):
		return model.DomainAllowed
	}
	return model.DomainUnscored
}

// Score sums the domain weights of a result set
func (d *DomainClassifier) Score(results []model.SearchResult) model.DomainQuality {
	var q model.DomainQuality
	for _, r := range results {
		class := d.Classify(r.URL)
		q.Score += class.Weight()
		switch class {
		case model.DomainHighTrust:
			q.HighTrust++
		case model.DomainHistorical:
			q.Historical++
		}
	}
	return q
}

func containsAny(host string, entries []string) bool {
	for _, e := range entries {
		if e != "" && strings.Contains(host, e) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}
