/*
 * MIT License
 *
 * Copyright (c) 2025 Nicolas JUHEL
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

package pktlog

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Fields is a concurrency-safe set of structured key/value pairs attached to
// log entries (connection id, opcode, worker name, ...).
type Fields struct {
	mu sync.RWMutex
	m  map[string]interface{}
}

// NewFields returns an empty, ready-to-use Fields set.
func NewFields() *Fields {
	return &Fields{m: make(map[string]interface{})}
}

// Add inserts or overwrites key and returns the receiver for chaining.
func (f *Fields) Add(key string, val interface{}) *Fields {
	if f == nil {
		return f
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m[key] = val
	return f
}

// Clone returns an independent copy of f.
func (f *Fields) Clone() *Fields {
	n := NewFields()
	if f == nil {
		return n
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	for k, v := range f.m {
		n.m[k] = v
	}
	return n
}

// Logrus converts the field set to logrus.Fields.
func (f *Fields) Logrus() logrus.Fields {
	res := make(logrus.Fields)
	if f == nil {
		return res
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	for k, v := range f.m {
		res[k] = v
	}
	return res
}
