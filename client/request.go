package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"sort"
	"strings"
)

// BearerPrefix is the scheme prefix of the Authorization header value.
const BearerPrefix = "Bearer "

// Request describes one call made through the Client.
// Body holds the payload in its structured form. It is encoded on every
// attempt, so a replayed request is serialized again under its new headers.
type Request struct {
	Method string
	URL    string
	Query  url.Values
	Header http.Header
	Body   any

	replayed  bool
	sentToken string
}

// NewRequest creates a request with an empty header set.
func NewRequest(method, urlStr string, body any) *Request {
	return &Request{
		Method: method,
		URL:    urlStr,
		Header: make(http.Header),
		Body:   body,
	}
}

// Clone returns a copy of the request with its own header and query maps.
// The body value is shared, the client never mutates it.
func (r *Request) Clone() *Request {
	c := *r
	c.Header = r.Header.Clone()
	if c.Header == nil {
		c.Header = make(http.Header)
	}
	if r.Query != nil {
		c.Query = make(url.Values, len(r.Query))
		for k, v := range r.Query {
			c.Query[k] = append([]string(nil), v...)
		}
	}
	return &c
}

// Replay returns a copy of the request carrying the given access token.
func (r *Request) Replay(accessToken string) *Request {
	c := r.Clone()
	c.Header.Set("Authorization", BearerPrefix+accessToken)
	c.replayed = true
	c.sentToken = ""
	return c
}

// Replayed reports whether the request is a replay made after a token refresh.
func (r *Request) Replayed() bool { return r.replayed }

// SentToken returns the bearer token the most recent attempt carried, if any.
func (r *Request) SentToken() string { return r.sentToken }

// FilePart is a single file inside a multipart body.
type FilePart struct {
	Field       string
	FileName    string
	ContentType string
	Content     []byte
}

// Multipart is a multipart/form-data body. Each encoding produces a new
// boundary, and the Content-Type header follows it.
type Multipart struct {
	Fields map[string]string
	Files  []FilePart
}

func (m *Multipart) encode() (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	keys := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := w.WriteField(k, m.Fields[k]); err != nil {
			return nil, "", fmt.Errorf("failed to write multipart field %s: %w", k, err)
		}
	}

	for _, f := range m.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.FileName))
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create multipart file %s: %w", f.FileName, err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, "", fmt.Errorf("failed to write multipart file %s: %w", f.FileName, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// encodeBody serializes a structured body and returns the reader together
// with the content type it implies.
func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return bytes.NewReader(b), "application/octet-stream", nil
	case string:
		return strings.NewReader(b), "text/plain; charset=utf-8", nil
	case url.Values:
		return strings.NewReader(b.Encode()), "application/x-www-form-urlencoded", nil
	case *Multipart:
		return b.encode()
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode JSON body: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}
}
