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

import "github.com/nabbar/fileserver/internal/errors"

const (
	ErrorListenSocket errors.CodeError = iota + errors.MinPkgControl
	ErrorListenBind
	ErrorListenBacklog
	ErrorControlSocket
	ErrorControlBind
	ErrorEpollCreate
	ErrorEpollCtl
	ErrorEpollWait
	ErrorSelfPipe
	ErrorWorkerPoolInit
	ErrorAcceptRejected
)

func init() {
	errors.RegisterIdFctMessage(errors.MinPkgControl, getMessage)
}

func getMessage(code errors.CodeError) string {
	switch code {
	case ErrorListenSocket:
		return "cannot create listen socket"
	case ErrorListenBind:
		return "cannot bind listen socket after exhausting retries"
	case ErrorListenBacklog:
		return "cannot mark listen socket passive"
	case ErrorControlSocket:
		return "cannot create control socket"
	case ErrorControlBind:
		return "cannot bind control socket"
	case ErrorEpollCreate:
		return "cannot create epoll instance"
	case ErrorEpollCtl:
		return "cannot register descriptor with epoll"
	case ErrorEpollWait:
		return "readiness wait failed"
	case ErrorSelfPipe:
		return "cannot create self-pipe for signal delivery"
	case ErrorWorkerPoolInit:
		return "cannot initialize worker pool"
	case ErrorAcceptRejected:
		return "connection rejected: live-connection cap reached"
	}
	return ""
}
