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

// Command fileserver is the process entry point: it owns the one piece
// of the system spec.md explicitly leaves to an external collaborator,
// argument parsing, then hands a fully-populated control.Config to the
// event engine and waits for TERM/INT.
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/nabbar/fileserver/internal/config"
	"github.com/nabbar/fileserver/internal/control"
	"github.com/nabbar/fileserver/internal/logging"
	"github.com/nabbar/fileserver/internal/metrics"
)

// MaxRootLen bounds the root path argument; there is no wire-level
// reason for a longer path than a typical PATH_MAX.
const MaxRootLen = 4096

// MaxPortDigits bounds the port argument's overflow check: a TCP port
// never exceeds 65535, five decimal digits.
const MaxPortDigits = 5

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s <root> <port> <rate>\n", progName())
}

func progName() string {
	if len(os.Args) == 0 {
		return "fileserver"
	}
	return os.Args[0]
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run parses argv and drives the server to completion, returning the
// process exit code so main stays a one-liner (§6 Invocation, Exit
// codes).
func run(argv []string) int {
	cfg, err := parseArgs(argv)
	if err != nil {
		usage()
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	log := logging.For("main")

	cfg.ConfigPath = config.DefaultPath

	if addr := os.Getenv("FILESERVER_METRICS_ADDR"); addr != "" {
		cfg.Metrics = metrics.New()
		dbg, derr := metrics.ListenDebug(addr, cfg.Metrics)
		if derr != nil {
			log.WithError(derr).Warn("metrics debug listener disabled")
		} else {
			log.WithField("addr", dbg.Addr()).Info("metrics debug listener started")
			defer dbg.Close()
		}
	}

	srv, err := control.New(cfg)
	if err != nil {
		log.WithError(err).Error("init failed")
		return 1
	}

	log.WithFields(logrus.Fields{
		"root": cfg.Root,
		"port": cfg.Port,
		"rate": cfg.Rate,
	}).Info("fileserver starting")

	if err := srv.Run(); err != nil {
		log.WithError(err).Error("fatal server error")
		return 1
	}

	log.Info("fileserver stopped")
	return 0
}

// parseArgs validates the fixed positional invocation of §6: exactly
// three arguments, an existing root, a port fitting in five decimal
// digits, and a non-negative rate, with no trailing non-numeric
// characters tolerated on either numeric field.
func parseArgs(argv []string) (control.Config, error) {
	if len(argv) != 3 {
		return control.Config{}, fmt.Errorf("expected 3 arguments, got %d", len(argv))
	}

	root, portArg, rateArg := argv[0], argv[1], argv[2]

	if len(root) == 0 || len(root) > MaxRootLen {
		return control.Config{}, fmt.Errorf("root path length out of range")
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return control.Config{}, fmt.Errorf("root %q does not exist", root)
	}

	if len(portArg) == 0 || len(portArg) > MaxPortDigits {
		return control.Config{}, fmt.Errorf("port %q out of range", portArg)
	}
	port, err := strconv.ParseUint(portArg, 10, 16)
	if err != nil {
		return control.Config{}, fmt.Errorf("port %q is not a valid port number", portArg)
	}

	rate, err := strconv.ParseInt(rateArg, 10, 64)
	if err != nil || rate < 0 {
		return control.Config{}, fmt.Errorf("rate %q is not a non-negative integer", rateArg)
	}

	return control.Config{
		Root: root,
		Port: int(port),
		Rate: rate,
	}, nil
}
