package rtsp

import (
	"strconv"
)

// DefaultServerID is the Server header sent when none is configured.
const DefaultServerID = "AirTunes/377.40.00"

// Common status codes used by the receiver.
const (
	StatusOK                  = 200
	StatusBadRequest          = 400
	StatusUnauthorized        = 401
	StatusNotFound            = 404
	StatusMethodNotAllowed    = 405
	StatusInternalServerError = 500
	StatusNotImplemented      = 501
)

// StatusText returns the reason phrase for the codes above, or "Unknown".
func StatusText(code int) string {
	switch code {
	case StatusOK:
		return "OK"
	case StatusBadRequest:
		return "Bad Request"
	case StatusUnauthorized:
		return "Unauthorized"
	case StatusNotFound:
		return "Not Found"
	case StatusMethodNotAllowed:
		return "Method Not Allowed"
	case StatusInternalServerError:
		return "Internal Server Error"
	case StatusNotImplemented:
		return "Not Implemented"
	default:
		return "Unknown"
	}
}

// AppendRTSPResponse appends an RTSP/1.0 response to dst. headers holds
// extra header lines, each terminated by CRLF, and may be empty.
// Content-Length is emitted only for a non-empty body and always reflects
// len(body).
func AppendRTSPResponse(dst []byte, serverID string, status int, text string, cseq int, headers string, body []byte) []byte {
	dst = append(dst, "RTSP/1.0 "...)
	dst = strconv.AppendInt(dst, int64(status), 10)
	dst = append(dst, ' ')
	dst = append(dst, text...)
	dst = append(dst, "\r\nCSeq: "...)
	dst = strconv.AppendInt(dst, int64(cseq), 10)
	dst = append(dst, "\r\nServer: "...)
	dst = append(dst, serverID...)
	dst = append(dst, "\r\n"...)
	dst = append(dst, headers...)
	if len(body) > 0 {
		dst = append(dst, "Content-Length: "...)
		dst = strconv.AppendInt(dst, int64(len(body)), 10)
		dst = append(dst, "\r\n"...)
	}
	dst = append(dst, "\r\n"...)
	return append(dst, body...)
}

// AppendHTTPResponse appends an HTTP/1.1 response to dst. The HTTP dialect
// always carries Content-Type and Content-Length, and a fixed CSeq of 1.
func AppendHTTPResponse(dst []byte, serverID string, status int, text, contentType string, body []byte) []byte {
	dst = append(dst, "HTTP/1.1 "...)
	dst = strconv.AppendInt(dst, int64(status), 10)
	dst = append(dst, ' ')
	dst = append(dst, text...)
	dst = append(dst, "\r\nContent-Type: "...)
	dst = append(dst, contentType...)
	dst = append(dst, "\r\nContent-Length: "...)
	dst = strconv.AppendInt(dst, int64(len(body)), 10)
	dst = append(dst, "\r\nServer: "...)
	dst = append(dst, serverID...)
	dst = append(dst, "\r\nCSeq: 1\r\n\r\n"...)
	return append(dst, body...)
}
