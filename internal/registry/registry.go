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

// Package registry is the in-use-file registry (C4): it enforces
// method-vs-method concurrency rules on resources so that no PUT can
// begin against a resource while any GET or PUT is in flight against it,
// and no GET may begin against a resource currently being PUT.
package registry

import "sync"

// Method is the HTTP method a connection is operating a resource under.
type Method int

const (
	MethodGET Method = iota
	MethodPUT
)

// Verdict is the outcome of Verify.
type Verdict int

const (
	// Denied means the requester must receive HTTP 403.
	Denied Verdict = iota
	// AllowedNew means no record exists yet; the caller should create one.
	AllowedNew
	// AllowedExisting means a GET record exists and may be shared.
	AllowedExisting
)

// Record is an in-use-file entry: a resource name, the method it is held
// under, and a reference count of connections currently operating on it.
type Record struct {
	Name  string
	Kind  Method
	Count int
}

// Registry tracks every resource currently open by some connection.
type Registry struct {
	mu      sync.Mutex
	records map[string]*Record
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{records: make(map[string]*Record)}
}

// Verify decides whether method may operate on resource given the
// registry's current state. It does not mutate anything; the caller
// performs the matching Admit/Increment/Release call.
func (r *Registry) Verify(resource string, method Method) (Verdict, *Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[resource]
	if !ok {
		return AllowedNew, nil
	}

	if rec.Kind == MethodGET && method == MethodGET {
		return AllowedExisting, rec
	}

	return Denied, nil
}

// Admit creates a new record for resource with count 1. Call only after
// Verify returned AllowedNew.
func (r *Registry) Admit(resource string, method Method) *Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec := &Record{Name: resource, Kind: method, Count: 1}
	r.records[resource] = rec
	return rec
}

// Increment bumps an existing GET record's reference count. Call only
// after Verify returned AllowedExisting.
func (r *Registry) Increment(rec *Record) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.Count++
}

// Release decrements rec's reference count, detaching and freeing the
// record from the registry once the count reaches zero. Safe to call
// exactly once per connection that successfully Admit'd or Increment'd.
func (r *Registry) Release(rec *Record) {
	if rec == nil {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec.Count--
	if rec.Count <= 0 {
		delete(r.records, rec.Name)
	}
}

// Len reports the number of distinct resources currently tracked. Used by
// shutdown cleanup and tests.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Clean detaches every record, for use during control-plane shutdown.
func (r *Registry) Clean() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = make(map[string]*Record)
}
