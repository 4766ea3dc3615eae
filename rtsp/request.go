package rtsp

import (
	"bytes"
	"errors"
	"math"
	"strings"

	"github.com/opd-ai/airtunes/limits"
)

var (
	// ErrIncompleteHeader indicates the input holds no complete header block.
	ErrIncompleteHeader = errors.New("rtsp: header terminator not found")

	// ErrMalformedRequestLine indicates the request line has no method token.
	ErrMalformedRequestLine = errors.New("rtsp: malformed request line")
)

// headerTerminator ends the header block of every request.
var headerTerminator = []byte("\r\n\r\n")

// Request is a parsed RTSP or HTTP request. Body aliases the buffer passed to
// ParseRequest and is only valid while that buffer is.
type Request struct {
	Method        string
	Path          string
	CSeq          int
	ContentLength int
	ContentType   string
	Body          []byte

	// headers is the capped copy of the header block used for lookups.
	headers string
}

// FindHeaderEnd returns the index of the first CRLF CRLF in data, or -1.
func FindHeaderEnd(data []byte) int {
	return bytes.Index(data, headerTerminator)
}

// ParseRequest parses the request at the start of data. data must contain
// the complete header block; the body is everything after the terminator,
// regardless of the declared Content-Length.
//
// Method and path come from the request line alone. Each token is cut to
// its own cap; the excess of an overlong method is dropped rather than
// carried into the path, and a request line holding only a method leaves
// Path empty instead of taking a token from a header line.
func ParseRequest(data []byte) (*Request, error) {
	if len(data) == 0 {
		return nil, ErrIncompleteHeader
	}
	end := FindHeaderEnd(data)
	if end < 0 {
		return nil, ErrIncompleteHeader
	}

	line := data[:end]
	if i := bytes.Index(line, []byte("\r\n")); i >= 0 {
		line = line[:i]
	}
	tokens := strings.Fields(string(line))
	if len(tokens) == 0 {
		return nil, ErrMalformedRequestLine
	}

	req := &Request{
		Method: limits.Truncate(tokens[0], limits.MaxMethodLen),
		CSeq:   1,
	}
	if len(tokens) > 1 {
		req.Path = limits.Truncate(tokens[1], limits.MaxPathLen)
	}

	req.headers = string(data[:min(end, limits.MaxHeaderBlock)])

	if v, ok := findHeader(req.headers, "CSeq:"); ok {
		req.CSeq = atoi(v)
	}
	if v, ok := findHeader(req.headers, "Content-Length:"); ok {
		req.ContentLength = max(atoi(v), 0)
	}
	if v, ok := findHeader(req.headers, "Content-Type:"); ok {
		req.ContentType = limits.Truncate(headerValue(v), limits.MaxContentTypeLen)
	}

	bodyStart := end + len(headerTerminator)
	req.Body = data[bodyStart:len(data):len(data)]

	return req, nil
}

// Header returns the value of the first header line whose key matches name,
// ignoring case. name may be given with or without the trailing colon.
func (r *Request) Header(name string) (string, bool) {
	if !strings.HasSuffix(name, ":") {
		name += ":"
	}
	v, ok := findHeader(r.headers, name)
	if !ok {
		return "", false
	}
	return headerValue(v), true
}

// findHeader scans headers line by line for a line starting with key,
// ignoring case. It returns the rest of the header block from the start of
// the value, leading spaces and tabs removed.
func findHeader(headers, key string) (string, bool) {
	if key == "" {
		return "", false
	}
	for p := headers; ; {
		lineEnd := strings.Index(p, "\r\n")
		if lineEnd < 0 {
			lineEnd = len(p)
		}
		if lineEnd >= len(key) && strings.EqualFold(p[:len(key)], key) {
			return strings.TrimLeft(p[len(key):], " \t"), true
		}
		if lineEnd == len(p) {
			return "", false
		}
		p = p[lineEnd+2:]
	}
}

// headerValue cuts v at the first line break and trims trailing blanks.
func headerValue(v string) string {
	if i := strings.IndexAny(v, "\r\n"); i >= 0 {
		v = v[:i]
	}
	return strings.TrimRight(v, " \t")
}

// atoi parses a leading decimal integer the permissive way: leading
// whitespace and an optional sign are accepted, parsing stops at the first
// non-digit, and input without digits yields 0. Results saturate at the
// int32 range.
func atoi(s string) int {
	i := 0
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	neg := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		neg = s[i] == '-'
		i++
	}
	n := 0
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		n = n*10 + int(s[i]-'0')
		if n > math.MaxInt32 {
			n = math.MaxInt32
		}
	}
	if neg {
		return -n
	}
	return n
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	}
	return false
}

// ParseTransport extracts the client control and timing ports from the
// Transport header of a legacy SETUP request. Only the Transport line is
// searched; absent ports are 0.
func ParseTransport(data []byte) (control, timing uint16) {
	s := string(data)
	if end := FindHeaderEnd(data); end >= 0 {
		s = s[:end]
	}

	start := strings.Index(s, "Transport:")
	if start < 0 {
		return 0, 0
	}
	line := s[start:]
	if i := strings.Index(line, "\r\n"); i >= 0 {
		line = line[:i]
	}

	if i := strings.Index(line, "control_port="); i >= 0 {
		control = uint16(atoi(line[i+len("control_port="):]))
	}
	if i := strings.Index(line, "timing_port="); i >= 0 {
		timing = uint16(atoi(line[i+len("timing_port="):]))
	}
	return control, timing
}
