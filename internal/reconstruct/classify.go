package reconstruct

import (
	"fmt"
	"net/url"
	"strings"

	"WebReplay/WebReplay-Go-Agent/internal/flow"
)

// Class is the reconstruction category of a captured record.
type Class int

const (
	// ClassPage is a reconstructable user-facing HTML document.
	ClassPage Class = iota
	// ClassResource is a supporting asset saved alongside pages so their
	// references can be rewritten.
	ClassResource
	// ClassCached is a 304 revalidation; no body exists to reconstruct.
	ClassCached
	// ClassExcluded is traffic kept only as an audit listing entry.
	ClassExcluded
)

// Classifier applies the exclusion heuristics to captured records.
type Classifier struct {
	rules Rules
}

// NewClassifier creates a classifier over the given rules.
func NewClassifier(rules Rules) *Classifier {
	return &Classifier{rules: rules}
}

// Classify assigns a record its reconstruction category and a short,
// operator-facing reason.
func (c *Classifier) Classify(rec flow.Record) (Class, string) {
	if rec.Cached() {
		return ClassCached, "cache revalidation (304), no body transmitted"
	}

	u, err := url.Parse(rec.URL)
	if err != nil {
		return ClassExcluded, "unparseable url"
	}

	if host := strings.ToLower(u.Hostname()); host != "" {
		for _, marker := range c.rules.AdHosts {
			if strings.Contains(host, marker) {
				return ClassExcluded, "ad-network host: " + marker
			}
		}
	}
	lowPath := strings.ToLower(u.Path)
	for _, marker := range c.rules.APIPathMarkers {
		if strings.Contains(lowPath, marker) {
			return ClassExcluded, "api path: " + marker
		}
	}
	for _, marker := range c.rules.AnalyticsPathMarkers {
		if strings.Contains(lowPath, marker) {
			return ClassExcluded, "analytics path: " + marker
		}
	}

	if rec.IsHTML() {
		for _, marker := range c.rules.EmbedMarkers {
			if strings.Contains(lowPath, marker) {
				return ClassExcluded, "embedded frame or widget: " + marker
			}
		}
		if rec.StatusCode == 200 || isRedirect(rec.StatusCode) {
			return ClassPage, ""
		}
		return ClassExcluded, fmt.Sprintf("status %d", rec.StatusCode)
	}

	if rec.StatusCode >= 200 && rec.StatusCode < 300 && len(rec.Body) > 0 {
		return ClassResource, ""
	}
	return ClassExcluded, fmt.Sprintf("no reconstructable body (status %d)", rec.StatusCode)
}

func isRedirect(status int) bool {
	switch status {
	case 301, 302, 303, 307, 308:
		return true
	}
	return false
}
