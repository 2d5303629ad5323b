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

//go:build linux
// +build linux

package control

import (
	"io"

	"github.com/nabbar/fileserver/internal/errors"
	"github.com/nabbar/fileserver/internal/httpconn"
	"github.com/nabbar/fileserver/internal/workerpool"
)

// onReadable drives §4.5 steps 2, 3 and 6 for a readable client: finish
// reading the request line, validate it once complete, or pull more PUT
// body bytes and hand them to a write task.
func (s *Server) onReadable(c *httpconn.Conn) {
	if c.State&httpconn.StateSignalWait != 0 {
		return
	}

	if c.State&httpconn.StateReadRequest != 0 {
		switch c.ReadRequest() {
		case httpconn.IOFatal, httpconn.IOClosed:
			c.State |= httpconn.StateFinished
			return
		}
	}

	if c.State&httpconn.StateRequestReceived != 0 {
		c.Validate(s.cfg.Root, s.reg)
	}

	if c.State&httpconn.StateReadData != 0 {
		before := c.PosBuf
		res := c.RecvBody()
		if n := c.PosBuf - before; n > 0 {
			s.metrics().Received(n)
		}

		switch res {
		case httpconn.IOFatal, httpconn.IOClosed:
			c.State |= httpconn.StateFinished
			return
		}

		// Flush whatever is buffered past the header whether this recv
		// made progress, hit EOF (RecvBody already armed the response
		// state but left the last chunk sitting in Buf), or hit IORetry
		// because the buffer is full — any of those leaves bytes in
		// [PosHeader:PosBuf) that must reach the file before more is read.
		if c.PosBuf > c.PosHeader {
			s.dispatchWriteTask(c)
		}
	}
}

// onWritable drives §4.5 steps 4, 5 and 7: format the status line once,
// then alternate between fetching GET body chunks via a worker and
// sending whatever the buffer currently holds.
func (s *Server) onWritable(c *httpconn.Conn) {
	if c.State&httpconn.StateSignalWait != 0 {
		return
	}

	if c.State&httpconn.StateWriteHeader != 0 {
		c.BuildHeader()
	}

	if c.State&httpconn.StateWriteData != 0 && c.PosBuf == 0 && c.State&httpconn.StatePendingData == 0 {
		if c.File == nil || c.Task == httpconn.StatusFinished {
			c.State |= httpconn.StateFinished
			return
		}
		s.dispatchReadTask(c)
		return
	}

	if c.PosBuf == 0 {
		return
	}

	before := c.PosBuf
	switch c.Send() {
	case httpconn.IOFatal, httpconn.IOClosed:
		c.State |= httpconn.StateFinished
	default:
		if n := before - c.PosBuf; n > 0 {
			s.metrics().Sent(n)
		}
	}
}

// dispatchReadTask hands a GET body chunk fetch to the worker pool,
// setting SignalWait so the event thread leaves the connection's buffer
// alone until the completion signal arrives (§4.5 step 5, §4.2).
//
// The task goroutine below and drainControlSocket's read of c.Buf/
// c.PosBuf/c.Task are only ordered by the control-socket datagram, not by
// a Go memory barrier; this mutation-without-a-happens-before-edge is the
// pattern §4.2 prescribes, not an oversight.
func (s *Server) dispatchReadTask(c *httpconn.Conn) {
	budget := c.ReadBudget()
	if budget <= 0 {
		return
	}

	c.State |= httpconn.StateSignalWait
	s.pool.Add(workerpool.Task{
		Arg: c.ID,
		Fn: func() {
			n, err := c.File.Read(c.Buf[:budget])
			switch {
			case err != nil && err != io.EOF:
				c.Err = errors.New(httpconn.ErrorBodyRead, err)
				c.Task = httpconn.StatusError
			case n < budget:
				c.PosBuf = n
				c.Task = httpconn.StatusFinished
			default:
				c.PosBuf = n
				c.Task = httpconn.StatusMoreData
			}
		},
	})
}

// dispatchWriteTask hands a PUT body chunk to the worker pool to fwrite,
// skipping the leading header bytes on the connection's first buffer
// (§4.5 step 6).
func (s *Server) dispatchWriteTask(c *httpconn.Conn) {
	start, end := c.PosHeader, c.PosBuf

	c.State |= httpconn.StateSignalWait
	s.pool.Add(workerpool.Task{
		Arg: c.ID,
		Fn: func() {
			if _, err := c.File.Write(c.Buf[start:end]); err != nil {
				c.Err = errors.New(httpconn.ErrorBodyWrite, err)
				c.Task = httpconn.StatusError
			} else {
				c.Task = httpconn.StatusMoreData
			}
			c.PosBuf = 0
			c.PosHeader = 0
		},
	})
}
