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

// Package workerpool is the task queue and fixed worker pool (C3): it
// runs blocking file I/O off the event thread and signals completion back
// by writing the owning connection's id, as fixed-width decimal text, to
// a Unix-domain datagram control socket the event thread's multiplexer
// polls for readability (§4.2, §6).
package workerpool

import (
	"sync"

	"golang.org/x/sys/unix"

	"github.com/nabbar/fileserver/internal/errors"
)

// DefaultWorkers is the fixed pool size adopted from the original
// server's threadpool_create call site (SPEC_FULL.md §4).
const DefaultWorkers = 4

// Task is a unit of blocking work identified, on completion, by the
// owning connection id carried in Arg. Tasks run FIFO within the queue.
type Task struct {
	Fn  func()
	Arg int64
}

type pool struct {
	mu       sync.Mutex
	cond     *sync.Cond
	queue    []Task
	shutdown bool
	wg       sync.WaitGroup
	sockFd   int
}

// Pool runs submitted tasks on a fixed number of worker goroutines and
// reports each completion by sending the connection id over its control
// socket.
type Pool struct {
	*pool
}

// New connects a datagram client socket to controlPath and starts n
// worker goroutines (n <= 0 uses DefaultWorkers). Mirrors §4.2's init
// contract: N workers, one mutex/condvar-guarded FIFO, one client socket.
func New(n int, controlPath string) (*Pool, error) {
	if n <= 0 {
		n = DefaultWorkers
	}

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, errors.New(ErrorSocketCreate, err)
	}

	if err = unix.Connect(fd, &unix.SockaddrUnix{Name: controlPath}); err != nil {
		_ = unix.Close(fd)
		return nil, errors.New(ErrorSocketConnect, err)
	}

	p := &pool{sockFd: fd}
	p.cond = sync.NewCond(&p.mu)

	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	return &Pool{p}, nil
}

// Add appends a task to the FIFO queue and wakes one waiting worker.
// Exactly one task per connection may be outstanding; the caller (the
// event thread) enforces that via its SignalWait bit before calling Add.
func (p *pool) Add(t Task) {
	p.mu.Lock()
	p.queue = append(p.queue, t)
	p.mu.Unlock()
	p.cond.Signal()
}

func (p *pool) worker() {
	defer p.wg.Done()

	var payload [ControlPayloadWidth]byte

	for {
		p.mu.Lock()
		for len(p.queue) == 0 && !p.shutdown {
			p.cond.Wait()
		}
		if p.shutdown && len(p.queue) == 0 {
			p.mu.Unlock()
			return
		}

		t := p.queue[0]
		p.queue = p.queue[1:]
		p.mu.Unlock()

		t.Fn()

		EncodeConnID(payload[:], t.Arg)
		if _, err := unix.Write(p.sockFd, payload[:]); err != nil {
			// A failed send on the control socket is fatal for this
			// worker: there is no retry loop (§4.2 Failures). The
			// connection that submitted this task is abandoned in
			// SignalWait; the control plane's shutdown path still
			// reclaims it during cleanup.
			return
		}
	}
}

// Destroy sets the shutdown flag, wakes every worker, joins them all, and
// closes the control socket. Tasks already queued still run to completion;
// nothing in flight is cancelled (§5: a quiesce waits for any running task
// to finish).
func (p *pool) Destroy() {
	p.mu.Lock()
	p.shutdown = true
	p.mu.Unlock()
	p.cond.Broadcast()
	p.wg.Wait()
	_ = unix.Close(p.sockFd)
}

// QueueDepth reports the number of tasks waiting to run, for metrics.
func (p *pool) QueueDepth() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}
