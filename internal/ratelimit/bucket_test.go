/*
 * MIT License
 *
 * Copyright (c) 2023 Nicolas JUHEL
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

package ratelimit_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nabbar/fileserver/internal/ratelimit"
)

var _ = Describe("Bucket", func() {
	Context("on creation", func() {
		It("starts full and transmission-allowed", func() {
			b := ratelimit.NewBucket(1000)
			Expect(b.Remaining()).To(Equal(int64(1000)))
			Expect(b.Allowed()).To(BeTrue())
		})

		It("a zero rate starts closed", func() {
			b := ratelimit.NewBucket(0)
			Expect(b.Allowed()).To(BeFalse())
		})
	})

	Context("Withdraw", func() {
		It("subtracts tokens without failing", func() {
			b := ratelimit.NewBucket(1000)
			b.Withdraw(400)
			Expect(b.Remaining()).To(Equal(int64(600)))
			Expect(b.Allowed()).To(BeTrue())
		})

		It("clamps at zero and closes transmission", func() {
			b := ratelimit.NewBucket(1000)
			b.Withdraw(5000)
			Expect(b.Remaining()).To(Equal(int64(0)))
			Expect(b.Allowed()).To(BeFalse())
		})

		It("never withdraws more than rate across repeated calls until Fill", func() {
			b := ratelimit.NewBucket(100)
			b.Withdraw(60)
			b.Withdraw(60)
			Expect(b.Remaining()).To(Equal(int64(0)))
		})
	})

	Context("Fill", func() {
		It("restores the full allowance and re-opens transmission", func() {
			b := ratelimit.NewBucket(1000)
			b.Withdraw(1000)
			Expect(b.Allowed()).To(BeFalse())
			b.Fill()
			Expect(b.Remaining()).To(Equal(int64(1000)))
			Expect(b.Allowed()).To(BeTrue())
		})
	})
})

var _ = Describe("Clock", func() {
	It("reports a new burst on the first tick", func() {
		c := ratelimit.NewClock()
		_, newBurst := c.Tick(time.Now())
		Expect(newBurst).To(BeTrue())
	})

	It("does not report a new burst before the period elapses", func() {
		c := ratelimit.NewClock()
		t0 := time.Now()
		c.Tick(t0)
		_, newBurst := c.Tick(t0.Add(100 * time.Millisecond))
		Expect(newBurst).To(BeFalse())
	})

	It("reports a new burst once the period elapses", func() {
		c := ratelimit.NewClock()
		t0 := time.Now()
		c.Tick(t0)
		_, newBurst := c.Tick(t0.Add(ratelimit.BurstPeriod + time.Millisecond))
		Expect(newBurst).To(BeTrue())
	})

	It("Remain clamps at zero", func() {
		Expect(ratelimit.Remain(2 * ratelimit.BurstPeriod)).To(Equal(time.Duration(0)))
		Expect(ratelimit.Remain(ratelimit.BurstPeriod / 2)).To(Equal(ratelimit.BurstPeriod / 2))
	})
})
