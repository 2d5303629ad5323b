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
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// signals owns the atomic shutdown/reload flags the event loop consults
// after every return from the readiness wait, and the goroutine that
// turns TERM/INT/HUP into those flags plus a self-pipe wakeup (§4.7,
// §9's self-pipe note).
type signals struct {
	shutdown atomic.Bool
	reload   atomic.Bool

	ch   chan os.Signal
	pipe *selfPipe
}

func newSignals(pipe *selfPipe) *signals {
	s := &signals{
		ch:   make(chan os.Signal, 4),
		pipe: pipe,
	}
	signal.Notify(s.ch, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	go s.run()
	return s
}

func (s *signals) run() {
	for sig := range s.ch {
		switch sig {
		case syscall.SIGTERM, syscall.SIGINT:
			s.shutdown.Store(true)
		case syscall.SIGHUP:
			s.reload.Store(true)
		}
		s.pipe.wake()
	}
}

func (s *signals) stop() {
	signal.Stop(s.ch)
	close(s.ch)
}

func (s *signals) Shutdown() bool { return s.shutdown.Load() }
func (s *signals) Reload() bool   { return s.reload.Load() }
func (s *signals) ClearReload()   { s.reload.Store(false) }

// requestShutdown sets the shutdown flag programmatically, the same way
// a delivered TERM/INT would, and wakes a blocked readiness wait. Used
// by Server.Stop and by tests that would rather not signal the whole
// test binary.
func (s *signals) requestShutdown() {
	s.shutdown.Store(true)
	s.pipe.wake()
}
