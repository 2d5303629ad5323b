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
	"errors"
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	ferrors "github.com/nabbar/fileserver/internal/errors"
	"github.com/nabbar/fileserver/internal/registry"
)

// IOResult classifies the outcome of a non-blocking socket call the way
// §7 does: Retry for EINTR/EAGAIN/EWOULDBLOCK, Closed for a clean peer
// shutdown, and Fatal for anything else.
type IOResult int

const (
	IOOk IOResult = iota
	IORetry
	IOClosed
	IOFatal
)

func classify(err error) IOResult {
	if err == nil {
		return IOOk
	}
	if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EINTR) {
		return IORetry
	}
	return IOFatal
}

// ReadRequest performs one non-blocking recv into the buffer and, on
// success, looks for the header terminator. Step 2 of §4.5.
func (c *Conn) ReadRequest() IOResult {
	if c.PosBuf >= BufferCapacity-1 {
		// request line never terminated within buffer capacity: fatal (§7).
		c.Err = ferrors.New(ErrorRequestTooLarge, nil)
		return IOFatal
	}

	n, err := unix.Read(c.Fd, c.Buf[c.PosBuf:BufferCapacity-1])
	if n == 0 && err == nil {
		return IOClosed
	}

	res := classify(err)
	if res != IOOk {
		return res
	}

	c.PosBuf += n

	if end := headerTerminator(c.Buf[:c.PosBuf]); end >= 0 {
		c.PosHeader = end
		c.State &^= StateReadRequest
		c.State |= StateRequestReceived
	}

	return IOOk
}

// Validate implements step 3 of §4.5: parse the request line, match
// method/protocol, resolve and authorize the resource, consult the
// registry, and open the file. It always ends by clearing
// StateRequestReceived and arming the outbound-transfer bits (so that
// even a non-200 outcome gets its status line sent and the connection
// closed after one response, per the state transition table).
func (c *Conn) Validate(root string, reg *registry.Registry) {
	c.State &^= StateRequestReceived

	rl, ok := ParseRequestLine(c.Buf[:c.PosHeader])
	if !ok {
		c.Code = CodeBadRequest
		c.armResponseOnly()
		return
	}

	method, ok := ParseMethod(rl.Method)
	if !ok {
		c.Code = CodeNotImplemented
		c.armResponseOnly()
		return
	}

	proto, ok := ParseProtocol(rl.Protocol)
	if !ok {
		c.Code = CodeBadRequest
		c.Protocol = ProtocolHTTP10
		c.armResponseOnly()
		return
	}

	c.Method = method
	c.Protocol = proto

	full, ok := ResolveResource(root, rl.Resource)
	if !ok {
		c.Code = CodeForbidden
		c.armResponseOnly()
		return
	}
	c.Resource = full

	regMethod := registry.MethodGET
	if method == MethodPUT {
		regMethod = registry.MethodPUT
	}

	verdict, match := reg.Verify(full, regMethod)
	switch verdict {
	case registry.Denied:
		c.Code = CodeForbidden
		c.armResponseOnly()
		return
	case registry.AllowedExisting:
		reg.Increment(match)
		c.Record = match
	case registry.AllowedNew:
		c.Record = reg.Admit(full, regMethod)
	}

	var err error
	if method == MethodGET {
		c.File, err = os.Open(full)
	} else {
		c.File, err = os.Create(full)
	}

	if err != nil {
		reg.Release(c.Record)
		c.Record = nil
		c.Code = CodeNotFound
		c.armResponseOnly()
		return
	}

	c.Code = CodeOK
	if method == MethodGET {
		c.State = StateWriteHeader | StateWriteData
	} else {
		c.State = StateReadData
	}
}

// armResponseOnly sets WriteHeader|WriteData so an error status line is
// sent and the connection closed after one response (§4.5 step 3, final
// sentence), without consulting the registry.
func (c *Conn) armResponseOnly() {
	c.State = StateWriteHeader | StateWriteData
	c.PosBuf = 0
}

// BuildHeader formats the status line into the buffer at offset 0, per
// §4.5 step 4 and the wire format in §6.
func (c *Conn) BuildHeader() {
	line := fmt.Sprintf("%s %d %s\r\n\r\n", c.Protocol.String(), c.Code, reason(c.Code))
	n := copy(c.Buf[0:], line)
	c.PosBuf = n
	c.State &^= StateWriteHeader
}

// Send attempts a single non-blocking send of Buf[0:PosBuf]. On success it
// withdraws the bytes sent from the bucket; a full send resets PosBuf to
// zero, while a partial send moves the unsent tail to the front of Buf and
// sets PendingData. A transient error sets PendingData so the caller retries next readiness
// pass without re-entering the rest of the state machine (§4.5 step 7).
func (c *Conn) Send() IOResult {
	if c.PosBuf == 0 {
		c.State &^= StatePendingData
		return IOOk
	}

	n, err := unix.Write(c.Fd, c.Buf[:c.PosBuf])
	res := classify(err)
	if res == IORetry {
		c.State |= StatePendingData
		return IORetry
	}
	if res == IOFatal {
		return IOFatal
	}

	c.Bucket.Withdraw(int64(n))

	if n < c.PosBuf {
		copy(c.Buf[0:], c.Buf[n:c.PosBuf])
		c.PosBuf -= n
		c.State |= StatePendingData
		return IOOk
	}

	c.PosBuf = 0
	c.State &^= StatePendingData
	return IOOk
}

// RecvBody performs one non-blocking recv of PUT body bytes directly into
// the buffer, bounded by both the buffer capacity and the bucket's
// remaining allowance, per §4.5 step 6. The first call's buffer still
// carries the header's trailing bytes at [0:PosHeader); the caller skips
// them when handing the buffer to the write task.
func (c *Conn) RecvBody() IOResult {
	limit := BufferCapacity
	if r := int(c.Bucket.Remaining()); r < limit {
		limit = r
	}
	if limit <= c.PosBuf {
		return IORetry
	}

	n, err := unix.Read(c.Fd, c.Buf[c.PosBuf:limit])
	if n == 0 && err == nil {
		c.State &^= StateReadData
		c.State |= StateWriteHeader | StateWriteData
		return IOOk
	}

	res := classify(err)
	if res != IOOk {
		return res
	}

	c.PosBuf += n
	return IOOk
}

// ReadBudget returns bytes_to_transfer for a GET read task: the lesser of
// the buffer capacity and the bucket's remaining allowance (§4.5 step 5).
func (c *Conn) ReadBudget() int {
	limit := BufferCapacity
	if r := int(c.Bucket.Remaining()); r < limit {
		limit = r
	}
	return limit
}
