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

package connlist_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/fileserver/internal/connlist"
	"github.com/nabbar/fileserver/internal/httpconn"
)

var _ = Describe("List", func() {
	var l *connlist.List

	BeforeEach(func() {
		l = connlist.New()
	})

	It("starts empty", func() {
		Expect(l.Len()).To(Equal(0))
		Expect(l.Fds()).To(BeEmpty())
	})

	It("pushes and looks up by fd", func() {
		c := httpconn.New(1, 7, 1024)
		l.Push(c)

		found, ok := l.Lookup(7)
		Expect(ok).To(BeTrue())
		Expect(found).To(BeIdenticalTo(c))
		Expect(l.Len()).To(Equal(1))
	})

	It("reports false for an unknown fd", func() {
		_, ok := l.Lookup(99)
		Expect(ok).To(BeFalse())
	})

	It("removes by fd and shrinks", func() {
		a := httpconn.New(1, 7, 1024)
		b := httpconn.New(2, 8, 1024)
		l.Push(a)
		l.Push(b)

		removed, ok := l.Remove(7)
		Expect(ok).To(BeTrue())
		Expect(removed).To(BeIdenticalTo(a))
		Expect(l.Len()).To(Equal(1))

		_, ok = l.Lookup(7)
		Expect(ok).To(BeFalse())

		still, ok := l.Lookup(8)
		Expect(ok).To(BeTrue())
		Expect(still).To(BeIdenticalTo(b))
	})

	It("Remove on an unknown fd is a no-op", func() {
		_, ok := l.Remove(123)
		Expect(ok).To(BeFalse())
	})

	It("panics on a duplicate fd push", func() {
		a := httpconn.New(1, 7, 1024)
		b := httpconn.New(2, 7, 1024)
		l.Push(a)
		Expect(func() { l.Push(b) }).To(Panic())
	})

	It("preserves insertion order across Each and Fds", func() {
		a := httpconn.New(1, 5, 1024)
		b := httpconn.New(2, 6, 1024)
		c := httpconn.New(3, 7, 1024)
		l.Push(a)
		l.Push(b)
		l.Push(c)

		Expect(l.Fds()).To(Equal([]int{5, 6, 7}))

		var seen []int64
		l.Each(func(conn *httpconn.Conn) { seen = append(seen, conn.ID) })
		Expect(seen).To(Equal([]int64{1, 2, 3}))
	})
})
