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

package metrics_test

import (
	"io"
	"net/http"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/fileserver/internal/metrics"
)

var _ = Describe("Metrics", func() {
	It("is safe to call on a nil pointer", func() {
		var m *metrics.Metrics
		Expect(func() {
			m.Accepted()
			m.Rejected()
			m.Dropped()
			m.Sent(10)
			m.Received(10)
			m.Denied()
			m.QueueDepth(3)
			m.Status(200)
		}).NotTo(Panic())
	})

	It("exposes updated counters on the debug scrape endpoint", func() {
		m := metrics.New()
		m.Accepted()
		m.Sent(42)
		m.Status(200)

		d, err := metrics.ListenDebug("127.0.0.1:0", m)
		Expect(err).NotTo(HaveOccurred())
		defer d.Close()

		resp, err := http.Get("http://" + d.Addr() + "/metrics")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())

		out := string(body)
		Expect(out).To(ContainSubstring("fileserver_connections_accepted_total 1"))
		Expect(out).To(ContainSubstring("fileserver_bytes_served_total 42"))
		Expect(out).To(ContainSubstring(`fileserver_requests_total{status="200"} 1`))
	})

	It("shuts the debug listener down without hanging", func() {
		m := metrics.New()
		d, err := metrics.ListenDebug("127.0.0.1:0", m)
		Expect(err).NotTo(HaveOccurred())

		done := make(chan error, 1)
		go func() { done <- d.Close() }()

		Eventually(done, time.Second).Should(Receive(BeNil()))

		_, err = http.Get("http://" + d.Addr() + "/metrics")
		Expect(err).To(HaveOccurred())
		Expect(strings.Contains(err.Error(), "refused") || strings.Contains(err.Error(), "closed")).To(BeTrue())
	})
})
