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

// Package control is the readiness multiplexer (C7) and control plane
// (C8): it owns the listen socket, the control-channel socket, the
// client list and registry, and the worker pool, and runs the single
// event-thread loop that ties every other package together.
package control

import (
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/nabbar/fileserver/internal/config"
	"github.com/nabbar/fileserver/internal/connlist"
	"github.com/nabbar/fileserver/internal/errors"
	"github.com/nabbar/fileserver/internal/httpconn"
	"github.com/nabbar/fileserver/internal/logging"
	"github.com/nabbar/fileserver/internal/metrics"
	"github.com/nabbar/fileserver/internal/registry"
	"github.com/nabbar/fileserver/internal/workerpool"
)

// MaxClients is the FD_SETSIZE-equivalent cap spec.md §4.6 step 5 asks
// for: a connection over this count is rejected at accept time rather
// than silently growing the epoll set without bound.
const MaxClients = 4096

// ControlSocketPath is the fixed, well-known path the control channel is
// bound to (§4.7, §6).
const ControlSocketPath = "/tmp/fileserver.control.sock"

// Config is the fixed invocation-time configuration (§6).
type Config struct {
	Root    string
	Port    int
	Rate    int64
	Workers int

	// ConfigPath is consulted on SIGHUP to refresh Rate (§4.7). Empty
	// disables reload.
	ConfigPath string

	// Metrics receives accept/reject/byte/status counters as the event
	// loop runs. Nil disables metrics entirely.
	Metrics *metrics.Metrics
}

// Server is the event-thread owner: listen/control sockets, epoll
// instance, client list, registry, worker pool and the current rate.
type Server struct {
	cfg Config
	log *logrus.Entry

	listenFd  int
	controlFd int
	epfd      int
	pipe      *selfPipe
	sig       *signals

	clients *connlist.List
	reg     *registry.Registry
	pool    *workerpool.Pool

	rate    atomic.Int64
	nextID  atomic.Int64
	running atomic.Bool
}

// New wires together every core package per §4.7's init contract: listen
// socket, control socket, worker pool (which dials the control socket's
// client side), epoll instance, and the self-pipe used for signal
// delivery. On any failure it tears down everything already created.
func New(cfg Config) (*Server, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = workerpool.DefaultWorkers
	}

	s := &Server{
		cfg:     cfg,
		log:     logging.For("control"),
		clients: connlist.New(),
		reg:     registry.New(),
	}
	s.rate.Store(cfg.Rate)

	var err error

	if s.listenFd, err = listenSocket(cfg.Port); err != nil {
		return nil, err
	}

	if s.controlFd, err = bindControlSocket(ControlSocketPath); err != nil {
		_ = unix.Close(s.listenFd)
		return nil, err
	}

	if s.pool, err = workerpool.New(cfg.Workers, ControlSocketPath); err != nil {
		_ = unix.Close(s.listenFd)
		_ = unix.Close(s.controlFd)
		return nil, errors.New(ErrorWorkerPoolInit, err)
	}

	if s.pipe, err = newSelfPipe(); err != nil {
		s.pool.Destroy()
		_ = unix.Close(s.listenFd)
		_ = unix.Close(s.controlFd)
		return nil, err
	}

	if s.epfd, err = unix.EpollCreate1(0); err != nil {
		s.pipe.close()
		s.pool.Destroy()
		_ = unix.Close(s.listenFd)
		_ = unix.Close(s.controlFd)
		return nil, errors.New(ErrorEpollCreate, err)
	}

	if err = s.epollAddRead(s.listenFd); err != nil {
		s.closeAll()
		return nil, err
	}
	if err = s.epollAddRead(s.controlFd); err != nil {
		s.closeAll()
		return nil, err
	}
	if err = s.epollAddRead(s.pipe.r); err != nil {
		s.closeAll()
		return nil, err
	}

	s.sig = newSignals(s.pipe)

	return s, nil
}

func (s *Server) epollAddRead(fd int) error {
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(s.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return errors.New(ErrorEpollCtl, err)
	}
	return nil
}

func (s *Server) closeAll() {
	if s.sig != nil {
		s.sig.stop()
	}
	if s.epfd != 0 {
		_ = unix.Close(s.epfd)
	}
	if s.pipe != nil {
		s.pipe.close()
	}
	if s.pool != nil {
		s.pool.Destroy()
	}
	_ = unix.Close(s.listenFd)
	_ = unix.Close(s.controlFd)
	_ = unix.Unlink(ControlSocketPath)
}

// reload re-reads cfg.ConfigPath for a new rate, per §4.7's "on reload,
// read the configuration file and update the server rate". A bad or
// missing file leaves the current rate untouched; this is logged, not
// fatal, since reload is never allowed to bring the server down.
func (s *Server) reload() {
	if s.cfg.ConfigPath == "" {
		return
	}
	rate, err := config.ReadRate(s.cfg.ConfigPath)
	if err != nil {
		s.log.WithError(err).Warn("reload: keeping previous rate")
		return
	}
	s.rate.Store(rate)
	s.clients.Each(func(c *httpconn.Conn) { c.Bucket.SetRate(rate) })
	s.log.WithField("rate", rate).Info("reload: rate updated")
}

// Stop requests an orderly shutdown identical to receiving TERM/INT,
// without going through the OS signal path. Run returns once the current
// readiness wait unblocks and cleanup finishes.
func (s *Server) Stop() {
	s.sig.requestShutdown()
}

// Port returns the TCP port the listen socket is actually bound to,
// which differs from cfg.Port when the caller requested an ephemeral
// port (0) — the common case in tests.
func (s *Server) Port() (int, error) {
	sa, err := unix.Getsockname(s.listenFd)
	if err != nil {
		return 0, err
	}
	in4, ok := sa.(*unix.SockaddrInet4)
	if !ok {
		return 0, errors.New(ErrorListenSocket, nil)
	}
	return in4.Port, nil
}

func (s *Server) metrics() *metrics.Metrics { return s.cfg.Metrics }
