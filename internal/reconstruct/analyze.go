package reconstruct

import (
	"net/url"
	"sort"
	"strings"

	"WebReplay/WebReplay-Go-Agent/internal/flow"
)

// ResourceTally counts supporting resources by rough kind.
type ResourceTally struct {
	Images      int
	Scripts     int
	Stylesheets int
	JSON        int
}

// CaptureStats summarizes what a capture window contains, for the operator
// and the offline reconstruction tool.
type CaptureStats struct {
	TotalRequests int
	Methods       map[string]int
	StatusCodes   map[int]int
	ContentTypes  map[string]int
	Domains       []string
	HTMLPages     int
	Resources     ResourceTally
}

// Analyze tallies a window's records without reconstructing anything.
func Analyze(records []flow.Record) CaptureStats {
	stats := CaptureStats{
		TotalRequests: len(records),
		Methods:       make(map[string]int),
		StatusCodes:   make(map[int]int),
		ContentTypes:  make(map[string]int),
	}
	domains := make(map[string]bool)

	for _, rec := range records {
		method := rec.Method
		if method == "" {
			method = "unknown"
		}
		stats.Methods[method]++
		stats.StatusCodes[rec.StatusCode]++

		if u, err := url.Parse(rec.URL); err == nil && u.Host != "" {
			domains[u.Host] = true
		}

		mime := strings.ToLower(rec.ContentType)
		if mime == "" {
			continue
		}
		stats.ContentTypes[mime]++
		switch {
		case strings.Contains(mime, "html"):
			stats.HTMLPages++
		case strings.Contains(mime, "image"):
			stats.Resources.Images++
		case strings.Contains(mime, "javascript"):
			stats.Resources.Scripts++
		case strings.Contains(mime, "css"):
			stats.Resources.Stylesheets++
		case strings.Contains(mime, "json"):
			stats.Resources.JSON++
		}
	}

	stats.Domains = make([]string, 0, len(domains))
	for d := range domains {
		stats.Domains = append(stats.Domains, d)
	}
	sort.Strings(stats.Domains)
	return stats
}
