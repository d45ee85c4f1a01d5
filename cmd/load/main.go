// Package main provides a synthetic browsing load generator. It produces a
// realistic capture window file without needing mitmdump or live traffic,
// which is the quickest way to exercise the reconstruction pipeline.
package main

import (
	"context"
	"flag"
	"log"
	"time"

	"WebReplay/WebReplay-Go-Agent/load"
)

func main() {
	duration := flag.Duration("duration", 5*time.Second, "traffic generation duration")
	output := flag.String("output", "./captures", "window output directory")
	flag.Parse()

	cfg := load.Config{Duration: *duration, OutputDir: *output}
	path, err := load.RunSyntheticBrowseLoad(context.Background(), nil, cfg)
	if err != nil {
		log.Fatalf("synthetic browse failed: %v", err)
	}
	if path == "" {
		log.Fatalf("no traffic was generated")
	}
	log.Printf("Wrote synthetic window to %s", path)
}
