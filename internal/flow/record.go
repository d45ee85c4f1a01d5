// Package flow defines the captured request/response record and the JSON
// wire format emitted by the upstream mitm capture feed.
package flow

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Header is a single HTTP header field. Field order and original casing are
// preserved exactly as they appeared on the wire.
type Header struct {
	Name  string
	Value string
}

// Headers is an ordered header list. Lookups are case-insensitive.
type Headers []Header

// Get returns the first value for the given header name, ignoring case.
func (h Headers) Get(name string) string {
	for _, f := range h {
		if strings.EqualFold(f.Name, name) {
			return f.Value
		}
	}
	return ""
}

// UnmarshalJSON decodes a JSON object into an ordered header list. A plain
// map would lose the wire order, so the object is walked token by token.
func (h *Headers) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("headers: expected object, got %v", tok)
	}
	var out Headers
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("headers: non-string key %v", keyTok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("headers: value for %q: %w", name, err)
		}
		out = append(out, Header{Name: name, Value: value})
	}
	*h = out
	return nil
}

// MarshalJSON encodes the headers as a JSON object in wire order.
func (h Headers) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range h {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Encoding identifies the declared content encoding of a response body.
type Encoding int

const (
	EncodingNone Encoding = iota
	EncodingGzip
	EncodingDeflate
	EncodingBrotli
)

func (e Encoding) String() string {
	switch e {
	case EncodingGzip:
		return "gzip"
	case EncodingDeflate:
		return "deflate"
	case EncodingBrotli:
		return "brotli"
	default:
		return "none"
	}
}

// Record is one captured request/response pair.
type Record struct {
	Timestamp   time.Time
	URL         string
	Method      string
	StatusCode  int
	ReqHeaders  Headers
	RespHeaders Headers
	// Body is the raw response body, possibly still content-encoded.
	Body        []byte
	ContentType string
}

// wireRecord is the JSON-lines object produced by the mitm capture addon.
type wireRecord struct {
	Timestamp   float64 `json:"timestamp"`
	URL         string  `json:"url"`
	Method      string  `json:"method"`
	StatusCode  int     `json:"status_code"`
	ReqHeaders  Headers `json:"req_headers"`
	RespHeaders Headers `json:"resp_headers"`
	MimeType    string  `json:"mime_type"`
	BodyB64     string  `json:"resp_body_b64"`
}

// UnmarshalJSON decodes a record from the capture feed wire format.
func (r *Record) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	sec := int64(w.Timestamp)
	nsec := int64((w.Timestamp - float64(sec)) * 1e9)
	r.Timestamp = time.Unix(sec, nsec).UTC()
	r.URL = w.URL
	r.Method = w.Method
	r.StatusCode = w.StatusCode
	r.ReqHeaders = w.ReqHeaders
	r.RespHeaders = w.RespHeaders
	r.ContentType = w.MimeType
	if w.BodyB64 != "" {
		body, err := base64.StdEncoding.DecodeString(w.BodyB64)
		if err != nil {
			return fmt.Errorf("record %s: bad body encoding: %w", w.URL, err)
		}
		r.Body = body
	} else {
		r.Body = nil
	}
	return nil
}

// MarshalJSON encodes a record back into the capture feed wire format so
// persisted windows stay readable by companion tooling.
func (r Record) MarshalJSON() ([]byte, error) {
	w := wireRecord{
		Timestamp:   float64(r.Timestamp.UnixNano()) / 1e9,
		URL:         r.URL,
		Method:      r.Method,
		StatusCode:  r.StatusCode,
		ReqHeaders:  r.ReqHeaders,
		RespHeaders: r.RespHeaders,
		MimeType:    r.ContentType,
	}
	if len(r.Body) > 0 {
		w.BodyB64 = base64.StdEncoding.EncodeToString(r.Body)
	}
	return json.Marshal(w)
}

// ParseLine decodes one line of feeder output. The mitm process mixes its
// own log output into stdout, so anything that is not a JSON capture object
// is skipped.
func ParseLine(line []byte) (Record, bool) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal(line, &rec); err != nil {
		return Record{}, false
	}
	if rec.URL == "" {
		return Record{}, false
	}
	return rec, true
}

// Encoding returns the content encoding declared by the response headers.
func (r Record) Encoding() Encoding {
	enc := strings.ToLower(r.RespHeaders.Get("Content-Encoding"))
	switch {
	case strings.Contains(enc, "br"):
		return EncodingBrotli
	case strings.Contains(enc, "gzip"):
		return EncodingGzip
	case strings.Contains(enc, "deflate"):
		return EncodingDeflate
	default:
		return EncodingNone
	}
}

// Cached reports whether the record is a 304 cache revalidation. No body was
// transmitted through the capture point for these.
func (r Record) Cached() bool {
	return r.StatusCode == 304
}

// IsHTML reports whether the response declared an HTML document.
func (r Record) IsHTML() bool {
	return strings.Contains(strings.ToLower(r.ContentType), "html")
}

// Host returns the hostname of the record URL, or "" if it cannot be parsed.
func (r Record) Host() string {
	u, err := url.Parse(r.URL)
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// Key identifies a record for de-duplication at segment boundaries.
func (r Record) Key() string {
	return fmt.Sprintf("%s|%d|%d", r.URL, r.Timestamp.UnixNano(), r.StatusCode)
}
