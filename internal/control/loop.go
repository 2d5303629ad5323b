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
	"time"

	"golang.org/x/sys/unix"

	"github.com/nabbar/fileserver/internal/errors"
	"github.com/nabbar/fileserver/internal/httpconn"
	"github.com/nabbar/fileserver/internal/ratelimit"
	"github.com/nabbar/fileserver/internal/workerpool"
)

const maxEpollEvents = 256

// Run executes the event-thread loop of §4.6 until a shutdown signal is
// observed, then performs §4.7's cleanup and returns nil. A fatal
// readiness-wait error (anything but EINTR) aborts the run and returns a
// Fatal-server-error per §7.
func (s *Server) Run() error {
	s.running.Store(true)
	defer s.running.Store(false)

	clock := ratelimit.NewClock()
	events := make([]unix.EpollEvent, maxEpollEvents)

	for {
		elapsed, newBurst := clock.Tick(nowMonotonic())
		if newBurst {
			s.clients.Each(func(c *httpconn.Conn) { c.Bucket.Fill() })
		}

		s.refreshInterest()
		s.metrics().QueueDepth(s.pool.QueueDepth())

		timeout := s.computeTimeout(elapsed, newBurst)

		n, err := unix.EpollWait(s.epfd, events, timeout)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return errors.New(ErrorEpollWait, err)
		}

		for i := 0; i < n; i++ {
			s.handleEvent(events[i])
		}

		if s.sig.Shutdown() {
			s.shutdownCleanup()
			return nil
		}
		if s.sig.Reload() {
			s.reload()
			s.sig.ClearReload()
		}

		// Collect first, drop after: dropClient removes from s.clients,
		// which must not happen while Each holds the list's lock.
		var finished []*httpconn.Conn
		s.clients.Each(func(c *httpconn.Conn) {
			if c.Finished() {
				finished = append(finished, c)
			}
		})
		for _, c := range finished {
			s.dropClient(c)
		}
	}
}

// computeTimeout implements §4.6 step 3: null (block, -1) when any live
// client currently has transmission allowance, otherwise the time left
// until the next burst boundary.
func (s *Server) computeTimeout(elapsed time.Duration, newBurst bool) int {
	if newBurst {
		return -1
	}

	anyAllowed := s.clients.Len() == 0
	s.clients.Each(func(c *httpconn.Conn) {
		if c.Bucket.Allowed() {
			anyAllowed = true
		}
	})
	if anyAllowed {
		return -1
	}

	return int(ratelimit.Remain(elapsed) / time.Millisecond)
}

func (s *Server) handleEvent(ev unix.EpollEvent) {
	fd := int(ev.Fd)

	switch fd {
	case s.listenFd:
		s.acceptLoop()
		return
	case s.controlFd:
		s.drainControlSocket()
		return
	case s.pipe.r:
		s.pipe.drain()
		return
	}

	c, ok := s.clients.Lookup(fd)
	if !ok {
		return
	}

	if ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
		s.dropClient(c)
		return
	}

	if ev.Events&unix.EPOLLIN != 0 {
		s.onReadable(c)
	}
	if !c.Finished() && ev.Events&unix.EPOLLOUT != 0 {
		s.onWritable(c)
	}
	if c.Finished() {
		s.dropClient(c)
	}
}

// acceptLoop drains the listen socket's backlog in one pass, the
// level-triggered-epoll equivalent of the reference design's "accept as
// many as are queued" (other_examples' raw-epoll server).
func (s *Server) acceptLoop() {
	for {
		fd, _, err := unix.Accept(s.listenFd)
		if err != nil {
			return
		}

		if s.clients.Len() >= MaxClients {
			s.log.Warn("accept rejected: live-connection cap reached")
			s.metrics().Rejected()
			_ = unix.Close(fd)
			continue
		}

		_ = unix.SetNonblock(fd, true)

		id := s.nextID.Add(1)
		c := httpconn.New(id, fd, s.rate.Load())

		if err = s.epollAddRead(fd); err != nil {
			_ = unix.Close(fd)
			continue
		}

		s.clients.Push(c)
		s.metrics().Accepted()
	}
}

// drainControlSocket implements §4.6 step 5's "drain pending task
// signals" in a bounded non-blocking loop.
//
// Reading c.Buf/c.PosBuf/c.Task here has no happens-before edge with the
// worker goroutine's writes to them (the datagram round-trip is not a Go
// memory barrier) — this is the spec-prescribed handoff (§4.2), and in
// practice the kernel socket buffer's own synchronization prevents
// torn reads, but it is a known race under -race.
func (s *Server) drainControlSocket() {
	var buf [workerpool.ControlPayloadWidth]byte

	for i := 0; i < maxEpollEvents; i++ {
		n, err := unix.Read(s.controlFd, buf[:])
		if err != nil || n == 0 {
			return
		}

		id, derr := workerpool.DecodeConnID(buf[:n])
		if derr != nil {
			continue
		}

		s.clients.Each(func(c *httpconn.Conn) {
			if c.ID != id {
				return
			}
			c.State &^= httpconn.StateSignalWait
			if c.Task == httpconn.StatusError {
				c.State |= httpconn.StateFinished
			}
		})
	}
}

func (s *Server) dropClient(c *httpconn.Conn) {
	_, _ = s.clients.Remove(c.Fd)
	_ = unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, c.Fd, nil)
	c.Release(s.reg)
	_ = unix.Close(c.Fd)

	if c.Err != nil {
		s.log.WithError(c.Err).WithField("conn", c.ID).Warn("connection dropped")
	}
	if c.Code != 0 {
		s.metrics().Status(c.Code)
	}
	// Resource is only set once the path stayed under root, so a 403 with
	// a Resource is a registry denial, not a root-escape rejection.
	if c.Code == httpconn.CodeForbidden && c.Resource != "" {
		s.metrics().Denied()
	}
	s.metrics().Dropped()
}

// shutdownCleanup implements §4.7's orderly shutdown: unlink the control
// socket, close listener and control sockets, destroy the worker pool,
// free every client and every registry entry.
func (s *Server) shutdownCleanup() {
	s.clients.Each(func(c *httpconn.Conn) {
		_ = unix.EpollCtl(s.epfd, unix.EPOLL_CTL_DEL, c.Fd, nil)
		c.Release(s.reg)
		_ = unix.Close(c.Fd)
	})

	s.pool.Destroy()
	s.reg.Clean()

	_ = unix.Close(s.listenFd)
	_ = unix.Close(s.controlFd)
	_ = unix.Unlink(ControlSocketPath)

	s.pipe.close()
	s.sig.stop()
	_ = unix.Close(s.epfd)
}

func nowMonotonic() time.Time {
	return time.Now()
}

// refreshInterest rebuilds each live client's epoll interest mask per
// §4.6 step 2: write-set when WriteData wants to send, read-set
// otherwise, and nothing at all while a worker owns the connection
// (SignalWait) or its bucket has no allowance left this burst.
func (s *Server) refreshInterest() {
	s.clients.Each(func(c *httpconn.Conn) {
		if c.Finished() || c.State&httpconn.StateSignalWait != 0 {
			s.setInterest(c.Fd, unix.EPOLLERR|unix.EPOLLHUP)
			return
		}
		if !c.Bucket.Allowed() {
			s.setInterest(c.Fd, unix.EPOLLERR|unix.EPOLLHUP)
			return
		}

		events := uint32(unix.EPOLLERR | unix.EPOLLHUP)
		switch {
		case c.WantsWrite():
			events |= unix.EPOLLOUT
		case c.WantsRead():
			events |= unix.EPOLLIN
		}
		s.setInterest(c.Fd, events)
	})
}

func (s *Server) setInterest(fd int, events uint32) {
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	_ = unix.EpollCtl(s.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}
