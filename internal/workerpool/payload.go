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

package workerpool

import (
	"strconv"
	"strings"
)

// ControlPayloadWidth is the fixed width of the connection-id payload a
// worker sends over the control socket: wide enough for any int64 in
// decimal, zero-padded. The pointer IS the signal payload in the original
// design (§4.2); here the monotonic connection id plays that role.
const ControlPayloadWidth = 20

// EncodeConnID writes id as zero-padded decimal text into buf, which must
// be at least ControlPayloadWidth bytes.
func EncodeConnID(buf []byte, id int64) {
	s := strconv.FormatInt(id, 10)
	for i := range buf {
		buf[i] = '0'
	}
	copy(buf[len(buf)-len(s):], s)
}

// DecodeConnID parses a payload produced by EncodeConnID.
func DecodeConnID(buf []byte) (int64, error) {
	s := strings.TrimLeft(string(buf), "0")
	if s == "" {
		return 0, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
