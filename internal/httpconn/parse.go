/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package httpconn

import (
	"bytes"
	"path/filepath"
	"strings"
)

// headerTerminator finds the end of the request's header block, preferring
// the canonical "\r\n\r\n" but accepting a bare "\n\n" from lax clients, as
// required by §4.5 step 2. It returns the offset just past the terminator,
// or -1 if neither is present yet.
func headerTerminator(buf []byte) int {
	if i := bytes.Index(buf, []byte("\r\n\r\n")); i >= 0 {
		return i + 4
	}
	if i := bytes.Index(buf, []byte("\n\n")); i >= 0 {
		return i + 2
	}
	return -1
}

// RequestLine holds the three whitespace-delimited tokens of a request
// line, before method/protocol/resource are validated against the fixed
// vocabularies.
type RequestLine struct {
	Method   string
	Resource string
	Protocol string
}

// ParseRequestLine splits the first line of buf into exactly three
// whitespace-delimited tokens. It returns ok=false if the token count is
// not exactly 3, which the caller turns into HTTP 400.
func ParseRequestLine(buf []byte) (RequestLine, bool) {
	line := buf
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	line = bytes.TrimRight(line, "\r\n")

	fields := strings.Fields(string(line))
	if len(fields) != 3 {
		return RequestLine{}, false
	}

	return RequestLine{Method: fields[0], Resource: fields[1], Protocol: fields[2]}, true
}

// ParseMethod matches a request-line method token against the accepted
// vocabulary {GET, PUT}, bounded to MaxMethodLen per §6.
func ParseMethod(tok string) (Method, bool) {
	if len(tok) > MaxMethodLen {
		return MethodUnknown, false
	}
	switch tok {
	case "GET":
		return MethodGET, true
	case "PUT":
		return MethodPUT, true
	default:
		return MethodUnknown, false
	}
}

// ParseProtocol matches a request-line protocol token against the
// accepted vocabulary {HTTP/1.0, HTTP/1.1}, bounded to MaxProtocolLen.
func ParseProtocol(tok string) (Protocol, bool) {
	if len(tok) > MaxProtocolLen {
		return ProtocolUnknown, false
	}
	switch tok {
	case "HTTP/1.0":
		return ProtocolHTTP10, true
	case "HTTP/1.1":
		return ProtocolHTTP11, true
	default:
		return ProtocolUnknown, false
	}
}

// ResolveResource joins root with the request's resource path, canonicalizes
// it, and verifies the canonical path does not escape root. It returns the
// canonical absolute path and true when the request is authorized; false
// means the caller must respond 403 without opening the file.
//
// The check compares the canonical resource path against the canonical
// root as a path prefix rather than a raw string prefix, which is the
// "safer invariant" flagged in spec.md §9 as an explicit resolution of
// that design's open question (a plain string-prefix test is subtly wrong
// when root lacks a trailing separator, e.g. root "/srv/a" would wrongly
// accept "/srv/ab/x").
func ResolveResource(root, resource string) (string, bool) {
	if len(resource) > MaxResourceLen {
		return "", false
	}

	cleanRoot := filepath.Clean(root)
	joined := filepath.Join(cleanRoot, "/", resource)

	rel, err := filepath.Rel(cleanRoot, joined)
	if err != nil {
		return "", false
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}

	return joined, true
}
