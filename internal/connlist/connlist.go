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

// Package connlist holds the set of live connections the event loop is
// currently servicing (C5): a doubly linked list keyed by file descriptor,
// so a connection can be removed in O(1) once its fd is known from an
// epoll event, without walking the whole set.
package connlist

import (
	"container/list"
	"sync"

	"github.com/nabbar/fileserver/internal/httpconn"
)

// List is safe for concurrent use: every method takes an internal mutex.
// In this server only the event thread calls it; workers identify their
// connection by id and never touch the list.
type List struct {
	mu   sync.Mutex
	byFd map[int]*list.Element
	ring *list.List
}

// New returns an empty connection list.
func New() *List {
	return &List{
		byFd: make(map[int]*list.Element),
		ring: list.New(),
	}
}

// Push adds c to the list. It panics if c.Fd is already present, since the
// event loop never accepts two live connections sharing a descriptor.
func (l *List) Push(c *httpconn.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.byFd[c.Fd]; ok {
		panic("connlist: duplicate fd pushed")
	}
	l.byFd[c.Fd] = l.ring.PushBack(c)
}

// Lookup returns the connection registered under fd, if any.
func (l *List) Lookup(fd int) (*httpconn.Conn, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byFd[fd]
	if !ok {
		return nil, false
	}
	return e.Value.(*httpconn.Conn), true
}

// Remove drops the connection registered under fd, if any, and returns it.
func (l *List) Remove(fd int) (*httpconn.Conn, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.byFd[fd]
	if !ok {
		return nil, false
	}
	delete(l.byFd, fd)
	l.ring.Remove(e)
	return e.Value.(*httpconn.Conn), true
}

// Len reports the number of connections currently tracked.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ring.Len()
}

// Each calls fn for every connection, in insertion order. fn must not
// call back into the list: Each holds the lock for its whole traversal.
func (l *List) Each(fn func(c *httpconn.Conn)) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for e := l.ring.Front(); e != nil; e = e.Next() {
		fn(e.Value.(*httpconn.Conn))
	}
}

// Fds returns a snapshot slice of every tracked file descriptor, in
// insertion order.
func (l *List) Fds() []int {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]int, 0, l.ring.Len())
	for e := l.ring.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*httpconn.Conn).Fd)
	}
	return out
}
