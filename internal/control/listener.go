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
)

// ListenBacklog is the passive-socket backlog, adopted from the original
// source's LISTEN_BACKLOG constant (SPEC_FULL.md §4).
const ListenBacklog = 512

// BindRetries bounds how many bind attempts listenSocket makes while the
// bind fails with EADDRINUSE, adopted from the original source's LIMIT_SEND
// probe count (SPEC_FULL.md §4).
const BindRetries = 5

const bindRetryDelay = 200 * time.Millisecond

// listenSocket creates a non-blocking IPv4 TCP socket, binds it to port
// on every interface and marks it passive with ListenBacklog. A bind that
// fails with EADDRINUSE is attempted up to BindRetries times in total before
// giving up, the way the original source polls for a just-closed socket's
// TIME_WAIT to clear.
func listenSocket(port int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, errors.New(ErrorListenSocket, err)
	}

	if err = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = unix.Close(fd)
		return -1, errors.New(ErrorListenSocket, err)
	}

	if err = unix.SetNonblock(fd, true); err != nil {
		_ = unix.Close(fd)
		return -1, errors.New(ErrorListenSocket, err)
	}

	sa := &unix.SockaddrInet4{Port: port}

	var bindErr error
	for attempt := 0; attempt < BindRetries; attempt++ {
		bindErr = unix.Bind(fd, sa)
		if bindErr == nil {
			break
		}
		if bindErr != unix.EADDRINUSE {
			break
		}
		time.Sleep(bindRetryDelay)
	}
	if bindErr != nil {
		_ = unix.Close(fd)
		return -1, errors.New(ErrorListenBind, bindErr)
	}

	if err = unix.Listen(fd, ListenBacklog); err != nil {
		_ = unix.Close(fd)
		return -1, errors.New(ErrorListenBacklog, err)
	}

	return fd, nil
}
