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

package registry_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/fileserver/internal/registry"
)

var _ = Describe("Registry", func() {
	var r *registry.Registry

	BeforeEach(func() {
		r = registry.New()
	})

	Context("first requester on a resource", func() {
		It("is always AllowedNew regardless of method", func() {
			v, rec := r.Verify("/a", registry.MethodGET)
			Expect(v).To(Equal(registry.AllowedNew))
			Expect(rec).To(BeNil())

			v, rec = r.Verify("/b", registry.MethodPUT)
			Expect(v).To(Equal(registry.AllowedNew))
			Expect(rec).To(BeNil())
		})
	})

	Context("concurrent GETs on the same resource", func() {
		It("allows a second GET to share the existing record", func() {
			v, _ := r.Verify("/a", registry.MethodGET)
			Expect(v).To(Equal(registry.AllowedNew))
			rec := r.Admit("/a", registry.MethodGET)

			v2, rec2 := r.Verify("/a", registry.MethodGET)
			Expect(v2).To(Equal(registry.AllowedExisting))
			Expect(rec2).To(Equal(rec))
			r.Increment(rec2)

			Expect(rec.Count).To(Equal(2))
		})

		It("drops the record once both releasers are gone", func() {
			rec := r.Admit("/a", registry.MethodGET)
			r.Increment(rec)
			Expect(r.Len()).To(Equal(1))

			r.Release(rec)
			Expect(r.Len()).To(Equal(1))

			r.Release(rec)
			Expect(r.Len()).To(Equal(0))
		})
	})

	Context("a PUT in flight", func() {
		It("denies a concurrent GET on the same resource", func() {
			rec := r.Admit("/x", registry.MethodPUT)
			Expect(rec.Count).To(Equal(1))

			v, match := r.Verify("/x", registry.MethodGET)
			Expect(v).To(Equal(registry.Denied))
			Expect(match).To(BeNil())
		})

		It("denies a concurrent second PUT on the same resource", func() {
			r.Admit("/x", registry.MethodPUT)

			v, _ := r.Verify("/x", registry.MethodPUT)
			Expect(v).To(Equal(registry.Denied))
		})

		It("admits a new GET after the PUT releases", func() {
			rec := r.Admit("/x", registry.MethodPUT)
			r.Release(rec)

			v, _ := r.Verify("/x", registry.MethodGET)
			Expect(v).To(Equal(registry.AllowedNew))
		})
	})

	Context("a GET in flight", func() {
		It("denies a concurrent PUT on the same resource", func() {
			r.Admit("/x", registry.MethodGET)

			v, _ := r.Verify("/x", registry.MethodPUT)
			Expect(v).To(Equal(registry.Denied))
		})
	})

	Context("Clean", func() {
		It("detaches every record", func() {
			r.Admit("/a", registry.MethodGET)
			r.Admit("/b", registry.MethodPUT)
			Expect(r.Len()).To(Equal(2))

			r.Clean()
			Expect(r.Len()).To(Equal(0))
		})
	})
})
