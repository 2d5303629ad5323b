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

package workerpool_test

import (
	"path/filepath"
	"sync/atomic"
	"time"

	"golang.org/x/sys/unix"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/fileserver/internal/workerpool"
)

// listenControlSocket binds a raw SOCK_DGRAM unix socket at path and
// returns its fd, mirroring the control plane's side of §4.2/§4.7.
func listenControlSocket(path string) int {
	fd, err := unix.Socket(unix.AF_UNIX, unix.SOCK_DGRAM, 0)
	Expect(err).NotTo(HaveOccurred())

	_ = unix.Unlink(path)
	Expect(unix.Bind(fd, &unix.SockaddrUnix{Name: path})).To(Succeed())

	return fd
}

var _ = Describe("Pool", func() {
	var (
		dir      string
		sockPath string
		srvFd    int
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		sockPath = filepath.Join(dir, "control.sock")
		srvFd = listenControlSocket(sockPath)
	})

	AfterEach(func() {
		_ = unix.Close(srvFd)
	})

	It("runs a task and signals its connection id over the control socket", func() {
		p, err := workerpool.New(2, sockPath)
		Expect(err).NotTo(HaveOccurred())
		defer p.Destroy()

		var ran atomic.Bool
		p.Add(workerpool.Task{
			Fn:  func() { ran.Store(true) },
			Arg: 42,
		})

		buf := make([]byte, workerpool.ControlPayloadWidth)
		Expect(waitReadable(srvFd)).To(Succeed())
		n, err := unix.Read(srvFd, buf)
		Expect(err).NotTo(HaveOccurred())

		id, err := workerpool.DecodeConnID(buf[:n])
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal(int64(42)))
		Expect(ran.Load()).To(BeTrue())
	})

	It("runs every queued task across a fixed worker count", func() {
		p, err := workerpool.New(workerpool.DefaultWorkers, sockPath)
		Expect(err).NotTo(HaveOccurred())
		defer p.Destroy()

		const n = 20
		var done atomic.Int32
		for i := 0; i < n; i++ {
			p.Add(workerpool.Task{Fn: func() { done.Add(1) }, Arg: int64(i)})
		}

		Eventually(func() int32 { return done.Load() }, time.Second).Should(Equal(int32(n)))
	})

	It("Destroy lets already-queued tasks finish before returning", func() {
		p, err := workerpool.New(1, sockPath)
		Expect(err).NotTo(HaveOccurred())

		var ran atomic.Bool
		p.Add(workerpool.Task{Fn: func() {
			time.Sleep(20 * time.Millisecond)
			ran.Store(true)
		}, Arg: 1})

		p.Destroy()
		Expect(ran.Load()).To(BeTrue())
	})
})

func waitReadable(fd int) error {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for i := 0; i < 50; i++ {
		n, err := unix.Poll(fds, 100)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
	}
	return nil
}
