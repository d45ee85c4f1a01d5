package window

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WebReplay/WebReplay-Go-Agent/internal/buffer"
	"WebReplay/WebReplay-Go-Agent/internal/flow"
)

var base = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func rec(ts time.Time, url string) flow.Record {
	return flow.Record{Timestamp: ts, URL: url, Method: "GET", StatusCode: 200}
}

// testExtractor returns an extractor whose clock is pinned after the buffer
// contents so past windows can be complete.
func testExtractor(ring *buffer.Ring, now time.Time) *Extractor {
	e := NewExtractor(ring)
	e.now = func() time.Time { return now }
	return e
}

func TestExtractPastWindow(t *testing.T) {
	ring := buffer.NewRing(20, time.Minute)
	for i := 0; i < 10; i++ {
		ring.Write(rec(base.Add(time.Duration(i)*time.Minute), "https://example.com/p"))
	}
	e := testExtractor(ring, base.Add(10*time.Minute))

	win, def := e.Extract(base.Add(10*time.Minute), 5*time.Minute, Past)
	require.Nil(t, def)
	require.NotNil(t, win)

	assert.Equal(t, base.Add(5*time.Minute), win.RequestedStart)
	assert.Equal(t, base.Add(10*time.Minute), win.RequestedEnd)
	assert.Len(t, win.Records, 5)
	assert.True(t, win.Complete)
}

func TestExtractBeyondRetentionIsPartialNotError(t *testing.T) {
	ring := buffer.NewRing(3, time.Minute)
	for i := 0; i < 10; i++ {
		ring.Write(rec(base.Add(time.Duration(i)*time.Minute), "https://example.com/p"))
	}
	e := testExtractor(ring, base.Add(10*time.Minute))

	// Window far larger than total retention: exactly the records still
	// present come back, and Complete must not claim full coverage.
	win, _ := e.Extract(base.Add(10*time.Minute), time.Hour, Past)
	assert.Len(t, win.Records, 3)
	assert.False(t, win.Complete)
}

func TestExtractEmptyBufferIsValid(t *testing.T) {
	ring := buffer.NewRing(3, time.Minute)
	e := testExtractor(ring, base)

	win, _ := e.Extract(base, 10*time.Minute, Past)
	require.NotNil(t, win)
	assert.Empty(t, win.Records)
	assert.False(t, win.Complete)
}

func TestExtractFutureDefers(t *testing.T) {
	ring := buffer.NewRing(20, time.Minute)
	e := testExtractor(ring, base)

	win, def := e.Extract(base, 10*time.Minute, Future)
	assert.Nil(t, win)
	require.NotNil(t, def)
	assert.Equal(t, base.Add(10*time.Minute), def.ResolveAt)
	assert.NotEqual(t, def.ID.String(), "00000000-0000-0000-0000-000000000000")

	// Once the wait has elapsed, resolution runs as a past extraction with
	// trigger+duration as the reference point.
	for i := 0; i < 10; i++ {
		ring.Write(rec(base.Add(time.Duration(i)*time.Minute), "https://example.com/f"))
	}
	e.now = func() time.Time { return base.Add(10 * time.Minute) }
	resolved := def.Resolve()
	assert.Equal(t, base, resolved.RequestedStart)
	assert.Equal(t, base.Add(10*time.Minute), resolved.RequestedEnd)
	assert.Len(t, resolved.Records, 10)
}

func TestMergeDeduplicatesAtBoundaries(t *testing.T) {
	dup := rec(base.Add(30*time.Second), "https://example.com/dup")
	records := []flow.Record{
		rec(base.Add(40*time.Second), "https://example.com/b"),
		dup,
		dup,
		rec(base.Add(10*time.Second), "https://example.com/a"),
	}
	merged := mergeRecords(records)
	require.Len(t, merged, 3)
	assert.Equal(t, "https://example.com/a", merged[0].URL)
	assert.Equal(t, "https://example.com/dup", merged[1].URL)
	assert.Equal(t, "https://example.com/b", merged[2].URL)
}

func TestExtractionIdempotent(t *testing.T) {
	ring := buffer.NewRing(20, time.Minute)
	for i := 0; i < 6; i++ {
		ring.Write(rec(base.Add(time.Duration(i)*45*time.Second), "https://example.com/r"))
	}
	e := testExtractor(ring, base.Add(10*time.Minute))

	first, _ := e.Extract(base.Add(10*time.Minute), 10*time.Minute, Past)
	second, _ := e.Extract(base.Add(10*time.Minute), 10*time.Minute, Past)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.Equal(t, a, b, "re-extraction over an unchanged buffer must be byte-identical")
}

func TestWindowName(t *testing.T) {
	ref := time.Unix(1700000000, 0)
	assert.Equal(t, "http_past10_1700000000", Name("http", Past, 10*time.Minute, ref))
	assert.Equal(t, "pcap_future10_1700000000", Name("pcap", Future, 10*time.Minute, ref))
}

func TestWriteReadHTTPRoundTrip(t *testing.T) {
	dir := t.TempDir()
	win := &CaptureWindow{
		RequestedStart: base,
		RequestedEnd:   base.Add(10 * time.Minute),
		Records: []flow.Record{
			rec(base.Add(time.Second), "https://example.com/a"),
			rec(base.Add(2*time.Second), "https://example.com/b"),
		},
		Complete: true,
	}

	path, err := WriteHTTP(win, dir, Name("http", Past, 10*time.Minute, base.Add(10*time.Minute)))
	require.NoError(t, err)
	assert.Contains(t, path, "http_past10_")

	loaded, err := ReadHTTP(path)
	require.NoError(t, err)
	require.Len(t, loaded.Records, 2)
	assert.Equal(t, win.Records[0].URL, loaded.Records[0].URL)
	assert.Equal(t, win.Records[0].Timestamp, loaded.Records[0].Timestamp)
}

func TestWriteHTTPEmptyWindow(t *testing.T) {
	dir := t.TempDir()
	win := &CaptureWindow{RequestedStart: base, RequestedEnd: base.Add(time.Minute)}

	path, err := WriteHTTP(win, dir, "http_past10_0")
	require.NoError(t, err)

	loaded, err := ReadHTTP(path)
	require.NoError(t, err)
	assert.Empty(t, loaded.Records)
}
