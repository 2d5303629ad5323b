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

// Package config reads the reload-time configuration file a HUP signal
// triggers a re-read of (§4.7). The file format and location are a build
// detail the core treats as opaque; only the "rate" key is consulted.
package config

import (
	"github.com/spf13/viper"

	"github.com/nabbar/fileserver/internal/errors"
)

const (
	ErrorReadConfig errors.CodeError = iota + errors.MinPkgControl + 100
	ErrorRateMissing
)

func init() {
	errors.RegisterIdFctMessage(errors.MinPkgControl+100, getMessage)
}

func getMessage(code errors.CodeError) string {
	switch code {
	case ErrorReadConfig:
		return "cannot read reload configuration file"
	case ErrorRateMissing:
		return "reload configuration file has no non-negative rate key"
	}
	return ""
}

// DefaultPath is the fixed reload configuration path (§6: "path fixed by
// build"). It is a plain var, not a const, only so tests can redirect it.
var DefaultPath = "/etc/fileserver/fileserver.yaml"

// ReadRate loads path and returns the configured "rate" key in bytes per
// burst. A missing or negative value is an error; the caller keeps the
// server's previous rate in that case rather than guessing.
func ReadRate(path string) (int64, error) {
	v := viper.New()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return 0, errors.New(ErrorReadConfig, err)
	}

	if !v.IsSet("rate") {
		return 0, errors.New(ErrorRateMissing, nil)
	}

	rate := v.GetInt64("rate")
	if rate < 0 {
		return 0, errors.New(ErrorRateMissing, nil)
	}

	return rate, nil
}
