// Package rtsp parses AirPlay control requests and builds their responses.
//
// Requests arrive over a byte stream in arbitrary fragments. Callers buffer
// until FindHeaderEnd locates the blank line, wait for the declared
// Content-Length, and then call ParseRequest:
//
//	if end := rtsp.FindHeaderEnd(buf); end >= 0 {
//	    req, err := rtsp.ParseRequest(buf)
//	    ...
//	}
//
// Header lookup is case-insensitive and numeric headers are parsed
// permissively: "CSeq: abc" yields 0, a missing CSeq yields 1.
//
// Conn ties a socket to the framing layer. It starts in plaintext mode;
// after pairing, EnableEncryption routes every read and write through
// framing.Reader and framing.Writer. Responses come in two dialects:
//
//	RTSP/1.0 200 OK\r\nCSeq: 3\r\nServer: AirTunes/377.40.00\r\n\r\n
//	HTTP/1.1 200 OK\r\nContent-Type: ...\r\nContent-Length: ...\r\nServer: ...\r\nCSeq: 1\r\n\r\n
package rtsp
