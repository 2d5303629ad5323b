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

	"golang.org/x/sys/unix"

	"github.com/nabbar/fileserver/internal/errors"
)

// bindControlSocket creates the server side of the worker-completion
// channel: a non-blocking Unix-domain datagram socket bound to path,
// unlinking any stale file left by a previous crashed run first (§4.7).
func bindControlSocket(path string) (int, error) {
	_ = os.Remove(path)

	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	if err != nil {
		return -1, errors.New(ErrorControlSocket, err)
	}

	if err = unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return -1, errors.New(ErrorControlSocket, err)
	}

	if err = unix.Bind(fd, &unix.SockaddrUnix{Name: path}); err != nil {
		_ = unix.Close(fd)
		return -1, errors.New(ErrorControlBind, err)
	}

	return fd, nil
}

// selfPipe is the self-pipe signal handlers write to so a blocked
// epoll_wait unblocks promptly, per spec.md §9's suggested replacement
// for POSIX's "unblock signals only inside the wait" technique.
type selfPipe struct {
	r, w int
}

func newSelfPipe() (*selfPipe, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		return nil, errors.New(ErrorSelfPipe, err)
	}
	return &selfPipe{r: fds[0], w: fds[1]}, nil
}

func (p *selfPipe) wake() {
	var b [1]byte
	_, _ = unix.Write(p.w, b[:])
}

// drain empties the pipe after a wake; level-triggered epoll would
// otherwise keep reporting it readable.
func (p *selfPipe) drain() {
	var buf [64]byte
	for {
		n, err := unix.Read(p.r, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

func (p *selfPipe) close() {
	_ = unix.Close(p.r)
	_ = unix.Close(p.w)
}
