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

// Package errors provides a numeric error-code type shared by every
// component boundary in this server, in the style of an HTTP status code:
// a small integer, a registered human message, and an optional parent
// error for chaining.
package errors

import "sync"

// CodeError is a small numeric classification for an error, analogous to
// an HTTP status code. Each package that returns CodeError values reserves
// its own range starting at a MinPkg* constant below.
type CodeError uint16

const (
	UnknownError CodeError = 0

	MinPkgRateLimit  CodeError = 100
	MinPkgRegistry   CodeError = 200
	MinPkgWorkerPool CodeError = 300
	MinPkgHTTPConn   CodeError = 400
	MinPkgControl    CodeError = 500
)

var (
	mu    sync.RWMutex
	idMsg = make(map[CodeError]Message)
)

// Message generates the human-readable text for a CodeError.
type Message func(code CodeError) string

// RegisterIdFctMessage registers the message function responsible for
// every code from id (inclusive) onward, up to the next registered id.
// Packages call this from an init() with their own MinPkg* constant.
func RegisterIdFctMessage(id CodeError, fn Message) {
	mu.Lock()
	defer mu.Unlock()
	idMsg[id] = fn
}

func lookup(code CodeError) string {
	mu.RLock()
	defer mu.RUnlock()

	var best CodeError
	var fn Message

	for id, f := range idMsg {
		if id <= code && id >= best {
			best, fn = id, f
		}
	}

	if fn == nil {
		return "unknown error"
	}

	return fn(code)
}

// Uint16 returns the CodeError as a uint16.
func (c CodeError) Uint16() uint16 {
	return uint16(c)
}
