package reconstruct

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rules holds the exclusion heuristics separating user-facing pages from
// ad, API and tracking traffic. The lists are best-effort configuration,
// not a guaranteed-complete classifier: legitimate pages and ad calls
// outside the lists will be misclassified.
type Rules struct {
	// AdHosts excludes responses served from ad-network hostnames.
	AdHosts []string `yaml:"ad_hosts"`
	// APIPathMarkers excludes API/XHR/GraphQL endpoints.
	APIPathMarkers []string `yaml:"api_path_markers"`
	// AnalyticsPathMarkers excludes analytics, beacon and pixel endpoints.
	AnalyticsPathMarkers []string `yaml:"analytics_path_markers"`
	// EmbedMarkers excludes embedded-frame and widget documents.
	EmbedMarkers []string `yaml:"embed_markers"`
}

// DefaultRules returns the built-in exclusion lists.
func DefaultRules() Rules {
	return Rules{
		AdHosts: []string{
			"doubleclick.net",
			"googlesyndication.com",
			"googleadservices.com",
			"adnxs.com",
			"criteo.com",
			"taboola.com",
			"outbrain.com",
			"adservice.",
			"ads.",
		},
		APIPathMarkers: []string{
			"/api/",
			"/graphql",
			"/xhr/",
			"/rest/",
			"/rpc/",
		},
		AnalyticsPathMarkers: []string{
			"/analytics",
			"/metrics",
			"/tracking",
			"/beacon",
			"/pixel",
			"/collect",
			"/ga.js",
			"/gtag",
			"/stats",
		},
		EmbedMarkers: []string{
			"/embed/",
			"/widget",
			"/iframe",
		},
	}
}

// LoadRules reads exclusion rules from a YAML file. An empty path returns
// the defaults; empty lists in the file fall back to the corresponding
// default list so a partial file stays usable.
func LoadRules(path string) (Rules, error) {
	defaults := DefaultRules()
	if path == "" {
		return defaults, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return defaults, fmt.Errorf("failed to read rules file: %w", err)
	}
	var rules Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return defaults, fmt.Errorf("failed to parse rules file: %w", err)
	}
	if len(rules.AdHosts) == 0 {
		rules.AdHosts = defaults.AdHosts
	}
	if len(rules.APIPathMarkers) == 0 {
		rules.APIPathMarkers = defaults.APIPathMarkers
	}
	if len(rules.AnalyticsPathMarkers) == 0 {
		rules.AnalyticsPathMarkers = defaults.AnalyticsPathMarkers
	}
	if len(rules.EmbedMarkers) == 0 {
		rules.EmbedMarkers = defaults.EmbedMarkers
	}
	return rules, nil
}
