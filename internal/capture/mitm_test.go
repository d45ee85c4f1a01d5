package capture

import (
	"os/exec"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"WebReplay/WebReplay-Go-Agent/internal/flow"
)

type recordingSink struct {
	mu   sync.Mutex
	recs []flow.Record
}

func (s *recordingSink) Write(rec flow.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
}

func (s *recordingSink) records() []flow.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]flow.Record(nil), s.recs...)
}

func TestScanFiltersFeederNoise(t *testing.T) {
	output := strings.Join([]string{
		"[12:00:00] mitmdump starting",
		`{"timestamp": 1700000000.0, "url": "https://example.com/", "method": "GET", "status_code": 200, "resp_headers": {"Content-Type": "text/html"}, "mime_type": "text/html", "resp_body_b64": "PGh0bWw+"}`,
		"client connect",
		`{"timestamp": 1700000001.0, "url": "https://example.com/app.js", "method": "GET", "status_code": 200, "mime_type": "application/javascript", "resp_body_b64": "dmFyIHg7"}`,
		"",
	}, "\n")

	sink := &recordingSink{}
	f := NewMitmFeeder(MitmConfig{}, sink)
	f.scan(strings.NewReader(output))

	recs := sink.records()
	require.Len(t, recs, 2)
	assert.Equal(t, "https://example.com/", recs[0].URL)
	assert.Equal(t, []byte("<html>"), recs[0].Body)
	assert.Equal(t, "https://example.com/app.js", recs[1].URL)
}

func TestFeederUnhealthyBeforeStart(t *testing.T) {
	f := NewMitmFeeder(MitmConfig{}, &recordingSink{})
	assert.False(t, f.Healthy())

	p := NewPcapFeeder(PcapConfig{Interface: "any", OutputDir: t.TempDir()})
	assert.False(t, p.Healthy())
}

func TestStopAfterProcessExited(t *testing.T) {
	bin, err := exec.LookPath("true")
	if err != nil {
		t.Skip("no 'true' binary on this system")
	}
	exited := func(t *testing.T) *exec.Cmd {
		t.Helper()
		cmd := exec.Command(bin)
		require.NoError(t, cmd.Start())
		require.NoError(t, cmd.Wait())
		return cmd
	}

	f := NewMitmFeeder(MitmConfig{}, &recordingSink{})
	f.cmd = exited(t)
	assert.NoError(t, f.Stop())
	assert.False(t, f.Healthy())

	p := NewPcapFeeder(PcapConfig{Interface: "any", OutputDir: t.TempDir()})
	p.cmd = exited(t)
	assert.NoError(t, p.Stop())
	assert.False(t, p.Healthy())
}

func TestMitmConfigDefaults(t *testing.T) {
	f := NewMitmFeeder(MitmConfig{}, &recordingSink{})
	assert.Equal(t, "mitmdump", f.cfg.Binary)
	assert.Equal(t, "127.0.0.1", f.cfg.ListenHost)
	assert.Equal(t, 8080, f.cfg.ListenPort)
}
