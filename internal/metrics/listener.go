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

package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/nabbar/fileserver/internal/logging"
)

// Debug is the scrape listener. It runs on Go's ordinary
// net/http stack deliberately: it is debug/ops surface, not the data
// path the event engine owns, so there is nothing to gain from the raw
// epoll machinery and every reason to reuse the stdlib server's
// battle-tested timeout handling instead.
type Debug struct {
	srv *http.Server
	log *logrus.Entry
}

// ListenDebug starts the scrape endpoint bound to addr (host:port) exactly
// as given; it does not restrict the host to loopback. Port 0 picks an
// ephemeral port, useful for tests; Addr() reports the actual bound
// address afterward.
func ListenDebug(addr string, m *Metrics) (*Debug, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))

	d := &Debug{
		srv: &http.Server{Handler: mux},
		log: logging.For("metrics"),
	}

	go func() {
		if err := d.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			d.log.WithError(err).Warn("debug listener stopped")
		}
	}()

	d.srv.Addr = ln.Addr().String()
	return d, nil
}

// Addr returns the address the debug listener is actually bound to.
func (d *Debug) Addr() string { return d.srv.Addr }

// Close shuts the debug listener down, giving in-flight scrapes a short
// grace period before forcing the connection closed.
func (d *Debug) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return d.srv.Shutdown(ctx)
}
