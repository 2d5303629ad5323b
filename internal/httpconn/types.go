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

// Package httpconn is the per-connection HTTP state machine (C6) and
// request parser (C9): it owns one client's socket, read buffer and
// file handle from accept to Finished, reads and validates the request
// line, and streams the response header/body or the PUT body into a
// file.
package httpconn

import (
	"os"

	"github.com/nabbar/fileserver/internal/errors"
	"github.com/nabbar/fileserver/internal/ratelimit"
	"github.com/nabbar/fileserver/internal/registry"
)

// Method is the negotiated HTTP method of a request.
type Method int

const (
	MethodUnknown Method = iota
	MethodGET
	MethodPUT
)

// Protocol is the negotiated HTTP protocol version of a request.
type Protocol int

const (
	ProtocolUnknown Protocol = iota
	ProtocolHTTP10
	ProtocolHTTP11
)

func (p Protocol) String() string {
	switch p {
	case ProtocolHTTP10:
		return "HTTP/1.0"
	case ProtocolHTTP11:
		return "HTTP/1.1"
	default:
		return "HTTP/1.0"
	}
}

// TaskStatus is set by a worker task on completion and consulted by the
// event thread once SignalWait clears.
type TaskStatus int

const (
	StatusMoreData TaskStatus = iota
	StatusFinished
	StatusError
)

// State is the bitset driving the per-connection transitions of §4.5.
type State uint16

const (
	StateReadRequest State = 1 << iota
	StateRequestReceived
	StateWriteHeader
	StateWriteData
	StateReadData
	StateSignalWait
	StatePendingData
	StateFinished
)

func (s State) has(f State) bool { return s&f != 0 }

// BufferCapacity is the fixed capacity of a connection's read/write
// buffer, adopted from the original server's BUFSIZ-sized BUFFER_LEN
// (see SPEC_FULL.md §4).
const BufferCapacity = 8192

// Field width caps from the wire protocol (§6).
const (
	MaxMethodLen   = 5
	MaxResourceLen = 200
	MaxProtocolLen = 9
)

// Fixed reason phrases (§4.5).
const (
	CodeOK                  = 200
	CodeBadRequest          = 400
	CodeForbidden           = 403
	CodeNotFound            = 404
	CodeNotImplemented      = 501
)

func reason(code int) string {
	switch code {
	case CodeOK:
		return "OK"
	case CodeBadRequest:
		return "BAD REQUEST"
	case CodeForbidden:
		return "FORBIDDEN"
	case CodeNotFound:
		return "NOT FOUND"
	case CodeNotImplemented:
		return "NOT IMPLEMENTED"
	default:
		return "BAD REQUEST"
	}
}

// Conn is one accepted client's connection state. It is created fresh per
// accept and lives until Finished, an unrecoverable error, an exception
// event, or a worker Error signal. Every field is the event thread's to
// mutate except Buf[0:PosBuf], PosBuf, PosHeader, Task and Err while
// StateSignalWait is set, which belong exclusively to whichever worker
// has the outstanding task.
type Conn struct {
	ID int64
	Fd int

	Buf       [BufferCapacity]byte
	PosBuf    int
	PosHeader int

	Method   Method
	Protocol Protocol
	Code     int

	File   *os.File
	Record *registry.Record
	Bucket *ratelimit.Bucket

	State State
	Task  TaskStatus

	BytesToTransfer int
	Resource        string

	// Err holds the reason a connection was driven to StateFinished by a
	// Fatal I/O result or a failed worker task, for the event loop to log
	// on drop. Nil for every ordinary (non-fatal) completion.
	Err errors.Error
}

// New returns a fresh connection state for an accepted socket fd.
func New(id int64, fd int, rate int64) *Conn {
	return &Conn{
		ID:     id,
		Fd:     fd,
		State:  StateReadRequest,
		Bucket: ratelimit.NewBucket(rate),
	}
}

// WantsWrite reports whether this connection should be polled for write
// readiness (WriteData wins over a pending header per §9's resolved open
// question).
func (c *Conn) WantsWrite() bool {
	return c.State.has(StateWriteData) && !c.State.has(StateSignalWait)
}

// WantsRead reports whether this connection should be polled for read
// readiness: everything that isn't purely waiting to write and isn't
// currently owned by a worker.
func (c *Conn) WantsRead() bool {
	if c.State.has(StateSignalWait) {
		return false
	}
	if c.State.has(StateWriteData) {
		return false
	}
	return true
}

// Finished reports whether the connection is done and should be dropped
// on the multiplexer's next pass.
func (c *Conn) Finished() bool {
	return c.State.has(StateFinished)
}

// Release frees this connection's registry reference and open file. Safe
// to call multiple times.
func (c *Conn) Release(reg *registry.Registry) {
	if c.Record != nil {
		reg.Release(c.Record)
		c.Record = nil
	}
	if c.File != nil {
		_ = c.File.Close()
		c.File = nil
	}
}
