package window

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeSegment writes a pcapng segment file with one dummy packet per
// timestamp and stamps the file's mtime at the last packet.
func writeSegment(t *testing.T, path string, timestamps []time.Time) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w, err := pcapgo.NewNgWriter(f, layers.LinkTypeEthernet)
	require.NoError(t, err)
	payload := make([]byte, 60)
	for _, ts := range timestamps {
		ci := gopacket.CaptureInfo{
			Timestamp:     ts,
			CaptureLength: len(payload),
			Length:        len(payload),
		}
		require.NoError(t, w.WritePacket(ci, payload))
	}
	require.NoError(t, w.Flush())
	require.NoError(t, f.Close())
	last := timestamps[len(timestamps)-1]
	require.NoError(t, os.Chtimes(path, last, last))
}

func countPackets(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r, err := pcapgo.NewNgReader(f, pcapgo.DefaultNgReaderOptions)
	require.NoError(t, err)
	count := 0
	for {
		if _, _, err := r.ReadPacketData(); err != nil {
			break
		}
		count++
	}
	return count
}

func TestExtractPcapWindow(t *testing.T) {
	dir := t.TempDir()
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	// Two rotating segments: one entirely before the window, one spanning it.
	writeSegment(t, filepath.Join(dir, "cap_00001.pcapng"), []time.Time{
		t0.Add(-20 * time.Minute), t0.Add(-19 * time.Minute),
	})
	writeSegment(t, filepath.Join(dir, "cap_00002.pcapng"), []time.Time{
		t0.Add(-5 * time.Minute), t0.Add(-3 * time.Minute), t0.Add(2 * time.Minute),
	})

	out := filepath.Join(t.TempDir(), "pcap_past10_0.pcapng")
	n, err := ExtractPcap(dir, out, t0.Add(-10*time.Minute), t0)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, countPackets(t, out))
}

func TestExtractPcapMissingDir(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.pcapng")
	n, err := ExtractPcap(filepath.Join(t.TempDir(), "nope"), out, time.Now().Add(-time.Minute), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExtractPcapNoPacketsInRange(t *testing.T) {
	dir := t.TempDir()
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	// Segment finished after the window opened, but every packet falls
	// past the window's end.
	writeSegment(t, filepath.Join(dir, "cap_00001.pcapng"), []time.Time{t0, t0.Add(time.Minute)})

	out := filepath.Join(t.TempDir(), "out.pcapng")
	n, err := ExtractPcap(dir, out, t0.Add(-10*time.Minute), t0.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExtractPcapSkipsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	t0 := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	writeSegment(t, filepath.Join(dir, "cap_00001.pcapng"), []time.Time{t0.Add(-time.Minute)})

	out := filepath.Join(t.TempDir(), "out.pcapng")
	n, err := ExtractPcap(dir, out, t0.Add(-10*time.Minute), t0)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
