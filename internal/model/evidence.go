package model

// SearchResult is one hit returned by the search backend
type SearchResult struct {
	ID            string `json:"id"`
	URL           string `json:"url"`
	Title         string `json:"title"`
	Text          string `json:"text,omitempty"`           // Inline text when the backend returned contents
	PublishedDate string `json:"published_date,omitempty"` // As reported by the backend, unparsed
}

// DomainClass is the trust classification of a source host
type DomainClass int

const (
	DomainUnscored   DomainClass = 0
	DomainAllowed    DomainClass = 1 // Generically allowed source
	DomainHistorical DomainClass = 2 // Historical archive
	DomainHighTrust  DomainClass = 3 // Primary/reference publisher
)

func (c DomainClass) String() string {
	switch c {
	case DomainHighTrust:
		return "high-trust"
	case DomainHistorical:
		return "historical"
	case DomainAllowed:
		return "allowed"
	default:
		return "unscored"
	}
}

// Weight is the score contribution of one result from this class
func (c DomainClass) Weight() float64 {
	switch c {
	case DomainHighTrust:
		return 2
	case DomainHistorical:
		return 1.5
	case DomainAllowed:
		return 1
	default:
		return 0
	}
}

// DomainQuality summarizes the trustworthiness of a result set. It is derived
// on demand and never stored.
type DomainQuality struct {
	Score      float64 `json:"score"`
	HighTrust  int     `json:"high_trust"`
	Historical int     `json:"historical"`
}
