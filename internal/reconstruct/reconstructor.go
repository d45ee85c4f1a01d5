// Package reconstruct turns an extracted capture window into classified,
// decompressed, reassembled page artifacts on disk.
package reconstruct

import (
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"time"

	"WebReplay/WebReplay-Go-Agent/internal/flow"
	"WebReplay/WebReplay-Go-Agent/internal/window"
)

// ResourceArtifact is a supporting asset written next to the pages that
// reference it.
type ResourceArtifact struct {
	URL         string
	LocalPath   string
	ContentType string
}

// PageArtifact is one reconstructed user-facing page.
type PageArtifact struct {
	SourceURL       string
	Domain          string
	LocalPath       string
	Timestamp       time.Time
	Resources       []ResourceArtifact
	Reconstructable bool
	Cached          bool
}

// Entry is one row of the audit listings consumed by the presentation
// layer. Every captured record appears in exactly one listing.
type Entry struct {
	URL             string
	Timestamp       time.Time
	Cached          bool
	Reconstructable bool
	LocalPath       string
	Reason          string
}

// Summary aggregates per-record outcomes for a window. Individual failures
// are counted here, never escalated.
type Summary struct {
	Records        int
	Pages          int
	Resources      int
	Cached         int
	Excluded       int
	DecodeFailures int
	WriteFailures  int
}

// Result is the full output of reconstructing one window.
type Result struct {
	Pages []PageArtifact
	// Reconstructed and NonReconstructed are the two read-only listings,
	// each in ascending timestamp order.
	Reconstructed    []Entry
	NonReconstructed []Entry
	Summary          Summary
}

// Reconstructor writes page artifacts derived from capture windows into an
// output directory tree organized as {domain}/{derived path}.
type Reconstructor struct {
	outDir     string
	classifier *Classifier
	// domains, when non-empty, restricts reconstruction to these hosts.
	domains map[string]bool
}

// New creates a reconstructor writing into outDir.
func New(outDir string, rules Rules) *Reconstructor {
	return &Reconstructor{
		outDir:     outDir,
		classifier: NewClassifier(rules),
	}
}

// FilterDomains restricts reconstruction to the given hostnames. Records
// from other hosts are listed as excluded.
func (r *Reconstructor) FilterDomains(domains []string) {
	if len(domains) == 0 {
		r.domains = nil
		return
	}
	r.domains = make(map[string]bool, len(domains))
	for _, d := range domains {
		r.domains[d] = true
	}
}

// Reconstruct classifies, decompresses and reassembles every record of the
// window. Writes are idempotent: re-reconstructing the same window
// overwrites to an identical result. A window with zero reconstructable
// pages is a normal empty result, not an error.
func (r *Reconstructor) Reconstruct(win *window.CaptureWindow) (*Result, error) {
	if err := os.MkdirAll(r.outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	records := append([]flow.Record(nil), win.Records...)
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})

	res := &Result{Summary: Summary{Records: len(records)}}

	// Pass 1: decode and persist supporting resources, building the map
	// page rewriting resolves against.
	type decoded struct {
		rec  flow.Record
		body []byte
		path string
	}
	resources := make(map[string]string)
	contentTypes := make(map[string]string)
	var pages []decoded

	for _, rec := range records {
		if r.skipDomain(rec) {
			res.Summary.Excluded++
			res.NonReconstructed = append(res.NonReconstructed, entryFor(rec, "", "outside domain filter"))
			continue
		}

		class, reason := r.classifier.Classify(rec)
		switch class {
		case ClassCached:
			res.Summary.Cached++
			res.NonReconstructed = append(res.NonReconstructed, Entry{
				URL:       rec.URL,
				Timestamp: rec.Timestamp,
				Cached:    true,
				Reason:    reason,
			})
		case ClassExcluded:
			res.Summary.Excluded++
			res.NonReconstructed = append(res.NonReconstructed, entryFor(rec, "", reason))
		case ClassResource, ClassPage:
			body, err := Decode(rec.Body, rec.Encoding())
			if err != nil {
				res.Summary.DecodeFailures++
				res.NonReconstructed = append(res.NonReconstructed, entryFor(rec, "", "decode failed: "+err.Error()))
				continue
			}
			localPath, err := ArtifactPath(r.outDir, rec.URL, rec.ContentType)
			if err != nil {
				res.Summary.Excluded++
				res.NonReconstructed = append(res.NonReconstructed, entryFor(rec, "", "unusable url: "+err.Error()))
				continue
			}
			if class == ClassPage {
				if len(body) == 0 {
					// Redirects and other body-less documents have
					// nothing to reconstruct.
					res.Summary.Excluded++
					res.NonReconstructed = append(res.NonReconstructed, entryFor(rec, "", fmt.Sprintf("empty document body (status %d)", rec.StatusCode)))
					continue
				}
				pages = append(pages, decoded{rec: rec, body: body, path: localPath})
				// Pages are link targets too. First capture of a URL
				// claims the path, matching pass 2.
				if _, ok := resources[rec.URL]; !ok {
					resources[rec.URL] = localPath
					contentTypes[rec.URL] = rec.ContentType
				}
				continue
			}
			if err := writeArtifact(localPath, body); err != nil {
				res.Summary.WriteFailures++
				res.NonReconstructed = append(res.NonReconstructed, entryFor(rec, "", "write failed: "+err.Error()))
				continue
			}
			res.Summary.Resources++
			resources[rec.URL] = localPath
			contentTypes[rec.URL] = rec.ContentType
			res.NonReconstructed = append(res.NonReconstructed, entryFor(rec, localPath, "supporting resource"))
		}
	}

	// Pass 2: pages, with resource references rewritten against this
	// window's resource map. Earlier captures of the same path win; later
	// duplicates are listed, not overwritten.
	written := make(map[string]bool)
	for _, p := range pages {
		if written[p.path] {
			res.Summary.Excluded++
			res.NonReconstructed = append(res.NonReconstructed, entryFor(p.rec, "", "duplicate of an already reconstructed page"))
			continue
		}

		body, resolved, err := RewriteHTML(p.body, p.rec.URL, p.path, resources)
		if err != nil {
			log.Printf("[reconstruct] Reference rewrite failed for %s, keeping original markup: %v", p.rec.URL, err)
			body = p.body
		}
		if err := writeArtifact(p.path, body); err != nil {
			res.Summary.WriteFailures++
			res.NonReconstructed = append(res.NonReconstructed, entryFor(p.rec, "", "write failed: "+err.Error()))
			continue
		}
		written[p.path] = true

		artifact := PageArtifact{
			SourceURL:       p.rec.URL,
			Domain:          p.rec.Host(),
			LocalPath:       p.path,
			Timestamp:       p.rec.Timestamp,
			Reconstructable: true,
		}
		for _, u := range resolved {
			artifact.Resources = append(artifact.Resources, ResourceArtifact{
				URL:         u,
				LocalPath:   resources[u],
				ContentType: contentTypes[u],
			})
		}
		res.Summary.Pages++
		res.Pages = append(res.Pages, artifact)
		res.Reconstructed = append(res.Reconstructed, Entry{
			URL:             p.rec.URL,
			Timestamp:       p.rec.Timestamp,
			Reconstructable: true,
			LocalPath:       p.path,
		})
	}

	sortEntries(res.Reconstructed)
	sortEntries(res.NonReconstructed)
	sort.SliceStable(res.Pages, func(i, j int) bool {
		return res.Pages[i].Timestamp.Before(res.Pages[j].Timestamp)
	})

	log.Printf("[reconstruct] Window done: %d records, %d pages, %d resources, %d cached, %d excluded, %d decode failures, %d write failures",
		res.Summary.Records, res.Summary.Pages, res.Summary.Resources, res.Summary.Cached,
		res.Summary.Excluded, res.Summary.DecodeFailures, res.Summary.WriteFailures)
	return res, nil
}

// OutputDir returns the artifact tree root.
func (r *Reconstructor) OutputDir() string { return r.outDir }

func (r *Reconstructor) skipDomain(rec flow.Record) bool {
	if r.domains == nil {
		return false
	}
	u, err := url.Parse(rec.URL)
	if err != nil {
		return true
	}
	return !r.domains[u.Hostname()]
}

func entryFor(rec flow.Record, localPath, reason string) Entry {
	return Entry{
		URL:       rec.URL,
		Timestamp: rec.Timestamp,
		LocalPath: localPath,
		Reason:    reason,
	}
}

func writeArtifact(path string, body []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, body, 0644)
}

func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
}

// Page returns one stable page of a listing. Repeated queries over an
// unchanged listing yield identical slices for the same offset and limit.
func Page(entries []Entry, offset, limit int) []Entry {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(entries) {
		return nil
	}
	end := len(entries)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return entries[offset:end]
}
