// Package main provides the offline page reconstruction command. It reads a
// previously extracted window file and rebuilds the pages it contains,
// without needing a running agent.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"WebReplay/WebReplay-Go-Agent/internal/reconstruct"
	"WebReplay/WebReplay-Go-Agent/internal/window"
)

func main() {
	outputDir := flag.String("o", "./reconstructed", "Directory for reconstructed pages")
	domains := flag.String("d", "", "Comma separated list of domains to reconstruct (default: all)")
	rulesFile := flag.String("rules", "", "YAML exclusion rules file (default: built-in rules)")
	analyzeOnly := flag.Bool("a", false, "Print capture statistics without reconstructing")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <window-file.json>\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
		os.Exit(2)
	}

	win, err := window.ReadHTTP(flag.Arg(0))
	if err != nil {
		log.Fatalf("Failed to load window file: %v", err)
	}

	stats := reconstruct.Analyze(win.Records)
	fmt.Printf("Capture: %d requests across %d domains\n", stats.TotalRequests, len(stats.Domains))
	fmt.Printf("  HTML pages:  %d\n", stats.HTMLPages)
	fmt.Printf("  Images:      %d\n", stats.Resources.Images)
	fmt.Printf("  Scripts:     %d\n", stats.Resources.Scripts)
	fmt.Printf("  Stylesheets: %d\n", stats.Resources.Stylesheets)
	fmt.Printf("  JSON:        %d\n", stats.Resources.JSON)
	for _, d := range stats.Domains {
		fmt.Printf("  - %s\n", d)
	}
	if *analyzeOnly {
		return
	}

	rules, err := reconstruct.LoadRules(*rulesFile)
	if err != nil {
		log.Fatalf("Failed to load exclusion rules: %v", err)
	}

	absOutputDir, err := filepath.Abs(*outputDir)
	if err != nil {
		log.Fatalf("Failed to resolve output directory path: %v", err)
	}

	r := reconstruct.New(absOutputDir, rules)
	if *domains != "" {
		var filter []string
		for _, d := range strings.Split(*domains, ",") {
			if d = strings.TrimSpace(d); d != "" {
				filter = append(filter, d)
			}
		}
		r.FilterDomains(filter)
	}

	res, err := r.Reconstruct(win)
	if err != nil {
		log.Fatalf("Reconstruction failed: %v", err)
	}
	if err := r.WriteIndex(res); err != nil {
		log.Fatalf("Failed to write index page: %v", err)
	}

	fmt.Printf("\nReconstructed %d pages with %d resources into %s\n",
		res.Summary.Pages, res.Summary.Resources, absOutputDir)
	fmt.Printf("Open %s to browse them.\n", filepath.Join(absOutputDir, "index.html"))
}
