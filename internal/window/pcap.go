package window

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// ExtractPcap merges packets from the rotating packet-capture directory
// whose capture timestamps fall in [start, end) into a single pcapng file
// at outPath. The raw capture is a companion artifact keyed by the same
// time range as the HTTP window, extracted independently of record-level
// merging. Returns the number of packets written. An absent or empty
// rotating directory is a degraded capture state, not an error: the result
// is (0, nil) and no file is created.
func ExtractPcap(pcapDir, outPath string, start, end time.Time) (int, error) {
	files, err := rotatingFiles(pcapDir, start)
	if err != nil || len(files) == 0 {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create pcap output dir: %w", err)
	}
	out, err := os.Create(outPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create pcap window file: %w", err)
	}

	var writer *pcapgo.NgWriter
	written := 0
	for _, path := range files {
		n, w, err := copyPacketRange(path, out, writer, start, end)
		if err != nil {
			// One unreadable segment must not lose the rest of the window.
			log.Printf("[window] Skipping unreadable capture segment %s: %v", filepath.Base(path), err)
			continue
		}
		writer = w
		written += n
	}

	if writer == nil || written == 0 {
		// Nothing in range; leave no empty artifact behind.
		out.Close()
		os.Remove(outPath)
		return 0, nil
	}
	if err := writer.Flush(); err != nil {
		out.Close()
		return written, fmt.Errorf("failed to flush pcap window: %w", err)
	}
	if err := out.Close(); err != nil {
		return written, fmt.Errorf("failed to close pcap window: %w", err)
	}
	return written, nil
}

// rotatingFiles lists capture segment files that may contain packets at or
// after start, oldest first. A file's modification time marks when its last
// packet was written, so files finished before the window began are skipped.
func rotatingFiles(pcapDir string, start time.Time) ([]string, error) {
	entries, err := os.ReadDir(pcapDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read rotating capture dir: %w", err)
	}

	type fileInfo struct {
		path string
		mod  time.Time
	}
	var files []fileInfo
	for _, entry := range entries {
		if entry.IsDir() || !isPcapFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(start) {
			continue
		}
		files = append(files, fileInfo{path: filepath.Join(pcapDir, entry.Name()), mod: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod.Before(files[j].mod) })

	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.path
	}
	return out, nil
}

// copyPacketRange copies packets within [start, end) from one capture
// segment into the output, creating the writer from the first readable
// segment's link type.
func copyPacketRange(path string, out io.Writer, writer *pcapgo.NgWriter, start, end time.Time) (int, *pcapgo.NgWriter, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, writer, err
	}
	defer f.Close()

	source, linkType, err := openPacketSource(f)
	if err != nil {
		return 0, writer, err
	}
	if writer == nil {
		writer, err = pcapgo.NewNgWriter(out, linkType)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to create pcapng writer: %w", err)
		}
	}

	count := 0
	for {
		data, ci, err := source.ReadPacketData()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Truncated tail of a live rotating file; keep what we have.
			break
		}
		if ci.Timestamp.Before(start) || !ci.Timestamp.Before(end) {
			continue
		}
		ci.InterfaceIndex = 0
		if err := writer.WritePacket(ci, data); err != nil {
			return count, writer, fmt.Errorf("failed to write packet: %w", err)
		}
		count++
	}
	return count, writer, nil
}

// packetSource is the minimal read surface shared by the pcap and pcapng
// readers.
type packetSource interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
}

// openPacketSource tries pcapng format first, then falls back to classic
// pcap.
func openPacketSource(f *os.File) (packetSource, layers.LinkType, error) {
	ngReader, err := pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
	if err == nil {
		return ngReader, ngReader.LinkType(), nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("error resetting file position: %w", err)
	}
	reader, err := pcapgo.NewReader(f)
	if err != nil {
		return nil, 0, fmt.Errorf("unrecognized capture format: %w", err)
	}
	return reader, reader.LinkType(), nil
}

// isPcapFile returns true if the filename has a .pcap or .pcapng extension.
func isPcapFile(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".pcap") || strings.HasSuffix(lower, ".pcapng")
}
