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

// Package ratelimit implements the per-connection token bucket (C1) and
// the burst clock (C2) that the readiness multiplexer uses to gate socket
// I/O and compute its wait timeout.
package ratelimit

import "sync/atomic"

// Bucket is a per-connection byte allowance, refilled to rate at every
// burst boundary. There is no global bucket: each connection owns one.
type Bucket struct {
	rate      int64
	remaining atomic.Int64
	allowed   atomic.Bool
}

// NewBucket returns a bucket with a full allowance of rate bytes. A rate
// of zero yields a bucket that never permits transmission: Fill leaves it
// closed, so a zero-rate connection is never polled for I/O.
func NewBucket(rate int64) *Bucket {
	b := &Bucket{rate: rate}
	b.Fill()
	return b
}

// Rate returns the configured bytes-per-burst for this bucket.
func (b *Bucket) Rate() int64 {
	return b.rate
}

// SetRate changes the bytes-per-burst a later Fill refills to, for a
// reload (§4.7) that must also reach already-connected clients rather
// than only new ones. Callable only from the event-loop goroutine, the
// same single writer that calls Fill.
func (b *Bucket) SetRate(rate int64) {
	b.rate = rate
}

// Remaining returns the current token count without mutating it. Safe to
// call from a worker goroutine computing bytes_to_transfer while the
// owning connection is in SignalWait.
func (b *Bucket) Remaining() int64 {
	return b.remaining.Load()
}

// Allowed reports whether the bucket currently permits transmission.
func (b *Bucket) Allowed() bool {
	return b.allowed.Load()
}

// Withdraw subtracts n tokens unconditionally, clamping at zero. It never
// fails; callers must check Allowed before attempting I/O, not after.
func (b *Bucket) Withdraw(n int64) {
	if n <= 0 {
		return
	}

	for {
		cur := b.remaining.Load()
		next := cur - n
		if next < 0 {
			next = 0
		}
		if b.remaining.CompareAndSwap(cur, next) {
			b.allowed.Store(next > 0)
			return
		}
	}
}

// Fill resets the bucket to a full allowance and re-opens transmission.
func (b *Bucket) Fill() {
	b.remaining.Store(b.rate)
	b.allowed.Store(b.rate > 0)
}
