// Package main provides an offline packet slicing command. It cuts a time
// range out of a rotating capture directory into a single pcapng file,
// useful when a window's packet trail needs to be re-extracted after the
// fact.
package main

import (
	"flag"
	"log"
	"path/filepath"
	"time"

	"WebReplay/WebReplay-Go-Agent/internal/window"
)

func main() {
	pcapDir := flag.String("dir", "./pcap", "rotating capture directory")
	output := flag.String("output", "", "output pcapng file (default: derived from the time range)")
	startStr := flag.String("start", "", "window start (RFC 3339)")
	duration := flag.Duration("duration", 10*time.Minute, "window duration")
	flag.Parse()

	if *startStr == "" {
		log.Fatalf("-start is required")
	}
	start, err := time.Parse(time.RFC3339, *startStr)
	if err != nil {
		log.Fatalf("Invalid -start value: %v", err)
	}
	end := start.Add(*duration)

	outPath := *output
	if outPath == "" {
		stem := window.Name("pcap", window.Past, *duration, end)
		outPath = filepath.Join(".", stem+".pcapng")
	}

	n, err := window.ExtractPcap(*pcapDir, outPath, start, end)
	if err != nil {
		log.Fatalf("Packet extraction failed: %v", err)
	}
	if n == 0 {
		log.Printf("No packets found in %s between %s and %s", *pcapDir, start, end)
		return
	}
	log.Printf("Wrote %d packets to %s", n, outPath)
}
