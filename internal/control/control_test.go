//go:build linux
// +build linux

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

package control_test

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/fileserver/internal/control"
)

// dial connects to the server, writes req, and returns everything the
// server sent back before closing the connection (no keep-alive, §1).
func dial(port int, req string) string {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), time.Second)
	Expect(err).NotTo(HaveOccurred())
	defer conn.Close()

	_, err = conn.Write([]byte(req))
	Expect(err).NotTo(HaveOccurred())

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	out, err := io.ReadAll(conn)
	Expect(err).NotTo(HaveOccurred())
	return string(out)
}

// put streams header+body, half-closes the write side so the server's
// EOF-triggered body-complete transition fires, and returns the response.
func put(port int, header, body string) string {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), time.Second)
	Expect(err).NotTo(HaveOccurred())
	defer conn.Close()

	_, err = conn.Write([]byte(header))
	Expect(err).NotTo(HaveOccurred())
	_, err = conn.Write([]byte(body))
	Expect(err).NotTo(HaveOccurred())

	tcp, ok := conn.(*net.TCPConn)
	Expect(ok).To(BeTrue())
	Expect(tcp.CloseWrite()).To(Succeed())

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	out, err := io.ReadAll(conn)
	Expect(err).NotTo(HaveOccurred())
	return string(out)
}

var _ = Describe("Server", func() {
	var (
		root string
		srv  *control.Server
		done chan error
		port int
	)

	BeforeEach(func() {
		root = GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(root, "hello.txt"), []byte("hello\n"), 0o644)).To(Succeed())

		var err error
		srv, err = control.New(control.Config{
			Root:    root,
			Port:    0,
			Rate:    1 << 20,
			Workers: 2,
		})
		Expect(err).NotTo(HaveOccurred())

		port, err = srv.Port()
		Expect(err).NotTo(HaveOccurred())

		done = make(chan error, 1)
		go func() { done <- srv.Run() }()
	})

	AfterEach(func() {
		srv.Stop()
		Eventually(done, 2*time.Second).Should(Receive(BeNil()))
	})

	It("S1: serves an existing file's exact bytes with a 200 status line", func() {
		resp := dial(port, "GET /hello.txt HTTP/1.0\r\n\r\n")
		Expect(resp).To(Equal("HTTP/1.0 200 OK\r\n\r\nhello\n"))
	})

	It("S2: a missing resource yields 404 and no body", func() {
		resp := dial(port, "GET /nowhere HTTP/1.1\r\n\r\n")
		Expect(resp).To(Equal("HTTP/1.1 404 NOT FOUND\r\n\r\n"))
	})

	It("S3: an unknown method yields 501", func() {
		resp := dial(port, "FOO /a HTTP/1.0\r\n\r\n")
		Expect(resp).To(Equal("HTTP/1.0 501 NOT IMPLEMENTED\r\n\r\n"))
	})

	It("S5: a resource escaping root yields 403 without opening anything", func() {
		resp := dial(port, "GET /../../etc/passwd HTTP/1.0\r\n\r\n")
		Expect(resp).To(Equal("HTTP/1.0 403 FORBIDDEN\r\n\r\n"))
	})

	It("property 7: a PUT payload is readable by a later GET of the same path", func() {
		putResp := put(port, "PUT /up.txt HTTP/1.0\r\n\r\n", "uploaded body\n")
		Expect(putResp).To(Equal("HTTP/1.0 200 OK\r\n\r\n"))

		getResp := dial(port, "GET /up.txt HTTP/1.0\r\n\r\n")
		Expect(getResp).To(Equal("HTTP/1.0 200 OK\r\n\r\nuploaded body\n"))
	})

	It("property 7: a PUT payload spanning multiple buffer fills is written in full", func() {
		body := strings.Repeat("0123456789", 2000) // several times BufferCapacity
		putResp := put(port, "PUT /big.txt HTTP/1.0\r\n\r\n", body)
		Expect(putResp).To(Equal("HTTP/1.0 200 OK\r\n\r\n"))

		getResp := dial(port, "GET /big.txt HTTP/1.0\r\n\r\n")
		Expect(getResp).To(Equal("HTTP/1.0 200 OK\r\n\r\n" + body))
	})

	It("serves two concurrent GETs of the same resource in full", func() {
		results := make(chan string, 2)
		for i := 0; i < 2; i++ {
			go func() { results <- dial(port, "GET /hello.txt HTTP/1.0\r\n\r\n") }()
		}

		var got []string
		Eventually(func() int {
			select {
			case r := <-results:
				got = append(got, r)
			default:
			}
			return len(got)
		}, 2*time.Second).Should(Equal(2))

		for _, r := range got {
			Expect(r).To(Equal("HTTP/1.0 200 OK\r\n\r\nhello\n"))
		}
	})

	It("shuts down cleanly, unlinking the control socket", func() {
		srv.Stop()
		Eventually(done, 2*time.Second).Should(Receive(BeNil()))

		_, err := os.Stat(control.ControlSocketPath)
		Expect(os.IsNotExist(err)).To(BeTrue())

		done = make(chan error, 1)
		close(done)
	})
})
