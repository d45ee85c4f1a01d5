package orchestrator

import (
	"log"
	"path/filepath"
	"time"

	"WebReplay/WebReplay-Go-Agent/internal/window"
)

// ArchivedWindow records where a materialized window landed on disk.
type ArchivedWindow struct {
	HTTPPath string
	PcapPath string
	Packets  int
}

// Archiver persists a materialized window as its on-disk artifacts.
type Archiver interface {
	Archive(win *window.CaptureWindow, dir window.Direction, duration time.Duration, ref time.Time) (ArchivedWindow, error)
}

// FileArchiver writes one JSON file with the window's records and, when a
// rotating packet capture exists, one pcapng file with the matching packet
// range. Both carry the same timestamped stem so they pair up on disk.
type FileArchiver struct {
	outDir  string
	pcapDir string
}

// NewFileArchiver creates an archiver writing into outDir. pcapDir is the
// rotating packet capture directory; empty disables pcap archiving.
func NewFileArchiver(outDir, pcapDir string) *FileArchiver {
	return &FileArchiver{outDir: outDir, pcapDir: pcapDir}
}

func (a *FileArchiver) Archive(win *window.CaptureWindow, dir window.Direction, duration time.Duration, ref time.Time) (ArchivedWindow, error) {
	var out ArchivedWindow

	stem := window.Name("http", dir, duration, ref)
	httpPath, err := window.WriteHTTP(win, a.outDir, stem)
	if err != nil {
		return out, err
	}
	out.HTTPPath = httpPath

	if a.pcapDir != "" {
		pcapPath := filepath.Join(a.outDir, window.Name("pcap", dir, duration, ref)+".pcapng")
		n, err := window.ExtractPcap(a.pcapDir, pcapPath, win.RequestedStart, win.RequestedEnd)
		if err != nil {
			// The HTTP artifact is the primary record; a missing or
			// unreadable packet trail degrades, it does not fail.
			log.Printf("[orchestrator] Packet extraction failed for %s: %v", stem, err)
			return out, nil
		}
		if n > 0 {
			out.PcapPath = pcapPath
			out.Packets = n
		}
	}
	return out, nil
}
