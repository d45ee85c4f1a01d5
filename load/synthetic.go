package load

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"WebReplay/WebReplay-Go-Agent/internal/capture"
	"WebReplay/WebReplay-Go-Agent/internal/flow"
	"WebReplay/WebReplay-Go-Agent/internal/window"
)

// Config controls the synthetic browsing duration and output location.
type Config struct {
	Duration  time.Duration
	OutputDir string
}

const syntheticPage = `<html><head>
<link href="/site.css" rel="stylesheet">
<script src="/site.js"></script>
</head><body><h1>Synthetic page</h1><img src="/logo.png"></body></html>`

var syntheticRoutes = []struct {
	path string
	mime string
	body string
}{
	{"/", "text/html", syntheticPage},
	{"/site.css", "text/css", "body { font-family: sans-serif; }"},
	{"/site.js", "application/javascript", "console.log('synthetic');"},
	{"/logo.png", "image/png", "\x89PNG\r\n\x1a\nnot-a-real-png"},
	{"/api/data", "application/json", `{"synthetic": true}`},
}

// RunSyntheticBrowseLoad serves a small local site, browses it repeatedly
// for the configured duration, and feeds every response into the sink the
// way the live capture proxy would. When OutputDir is set, the browsed
// traffic is also written out as a window file for the offline
// reconstruction tool. Returns the window file path, if any.
func RunSyntheticBrowseLoad(ctx context.Context, sink capture.Sink, cfg Config) (string, error) {
	if cfg.Duration <= 0 {
		cfg.Duration = 5 * time.Second
	}

	mux := http.NewServeMux()
	for _, route := range syntheticRoutes {
		r := route
		mux.HandleFunc(r.path, func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("Content-Type", r.mime)
			_, _ = w.Write([]byte(r.body))
		})
	}
	srv := &http.Server{Handler: mux}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	srv.Addr = listener.Addr().String()
	go srv.Serve(listener)
	defer srv.Shutdown(context.Background())

	genCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var records []flow.Record
	client := &http.Client{Timeout: 5 * time.Second}
	for genCtx.Err() == nil {
		for _, route := range syntheticRoutes {
			rec, err := fetch(genCtx, client, "http://"+srv.Addr+route.path)
			if err != nil {
				continue
			}
			if sink != nil {
				sink.Write(rec)
			}
			records = append(records, rec)
		}
		select {
		case <-genCtx.Done():
		case <-time.After(100 * time.Millisecond):
		}
	}

	if cfg.OutputDir == "" || len(records) == 0 {
		return "", nil
	}
	win := &window.CaptureWindow{
		RequestedStart: records[0].Timestamp,
		RequestedEnd:   records[len(records)-1].Timestamp.Add(time.Nanosecond),
		Records:        records,
		Complete:       true,
	}
	stem := window.Name("http", window.Past, cfg.Duration, time.Now())
	return window.WriteHTTP(win, cfg.OutputDir, stem)
}

func fetch(ctx context.Context, client *http.Client, url string) (flow.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return flow.Record{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return flow.Record{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return flow.Record{}, err
	}

	rec := flow.Record{
		Timestamp:   time.Now(),
		URL:         url,
		Method:      http.MethodGet,
		StatusCode:  resp.StatusCode,
		Body:        body,
		ContentType: resp.Header.Get("Content-Type"),
	}
	for name, values := range resp.Header {
		for _, v := range values {
			rec.RespHeaders = append(rec.RespHeaders, flow.Header{Name: name, Value: v})
		}
	}
	return rec, nil
}
