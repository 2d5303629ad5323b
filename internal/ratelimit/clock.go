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

package ratelimit

import "time"

// BurstPeriod is the interval over which every bucket's allowance resets.
const BurstPeriod = time.Second

// Clock tracks the last burst boundary. It is only ever touched by the
// event thread, so it carries no internal locking.
type Clock struct {
	last time.Time
}

// NewClock returns a Clock whose first Tick always reports a new burst,
// so the caller's first pass through the loop fills every bucket.
func NewClock() *Clock {
	return &Clock{}
}

// Tick reports whether a full burst period has elapsed since the last
// call that returned true, and resets the boundary when it has. The
// returned elapsed duration is only meaningful when newBurst is false:
// it is how far into the current burst period the caller is, which
// Remain turns into the multiplexer's wait timeout.
func (c *Clock) Tick(now time.Time) (elapsed time.Duration, newBurst bool) {
	if c.last.IsZero() || now.Sub(c.last) >= BurstPeriod {
		c.last = now
		return 0, true
	}
	return now.Sub(c.last), false
}

// Remain returns how long until the next burst boundary, clamped to zero.
func Remain(elapsed time.Duration) time.Duration {
	r := BurstPeriod - elapsed
	if r < 0 {
		return 0
	}
	return r
}
