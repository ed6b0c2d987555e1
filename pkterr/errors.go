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

package pkterr

import (
	"fmt"
	"runtime"
	"strings"
)

// Error extends the standard error with a CodeError classification, a
// captured stack frame, and an optional parent chain.
type Error interface {
	error

	// IsCode reports whether this error's own code equals code.
	IsCode(code CodeError) bool
	// HasCode reports whether this error or any ancestor has code.
	HasCode(code CodeError) bool
	// Code returns this error's own code.
	Code() CodeError
	// AddParent appends one or more parent errors to this error's chain.
	AddParent(parent ...error)
	// HasParent reports whether this error has at least one parent.
	HasParent() bool
	// File and Line report where this error was constructed.
	File() string
	Line() int
	// Unwrap exposes the first parent for errors.Is/errors.As compatibility.
	Unwrap() error
}

type pktErr struct {
	code CodeError
	msg  string
	file string
	line int
	fn   string
	p    []error
}

func newError(code CodeError, msg string, frame runtime.Frame, parent ...error) *pktErr {
	e := &pktErr{
		code: code,
		msg:  msg,
		file: frame.File,
		line: frame.Line,
		fn:   frame.Function,
	}
	e.AddParent(parent...)
	return e
}

func newErrorf(code CodeError, frame runtime.Frame, format string, args ...interface{}) *pktErr {
	return newError(code, fmt.Sprintf(format, args...), frame)
}

func (e *pktErr) Error() string {
	if e.msg == "" {
		return e.code.Message()
	}
	return e.msg
}

func (e *pktErr) IsCode(code CodeError) bool {
	return e.code == code
}

func (e *pktErr) HasCode(code CodeError) bool {
	if e.IsCode(code) {
		return true
	}
	for _, p := range e.p {
		if pe, ok := p.(Error); ok && pe.HasCode(code) {
			return true
		}
	}
	return false
}

func (e *pktErr) Code() CodeError {
	return e.code
}

func (e *pktErr) AddParent(parent ...error) {
	for _, p := range parent {
		if p == nil {
			continue
		}
		e.p = append(e.p, p)
	}
}

func (e *pktErr) HasParent() bool {
	return len(e.p) > 0
}

func (e *pktErr) File() string {
	return e.file
}

func (e *pktErr) Line() int {
	return e.line
}

func (e *pktErr) Unwrap() error {
	if len(e.p) == 0 {
		return nil
	}
	return e.p[0]
}

// CollectString joins the error's message and those of its first-parent
// chain (as followed by Unwrap) with " <- ", useful for a single-line log of
// a failure chain. Parents after the first at each level are not included.
func CollectString(err error) string {
	var parts []string
	for err != nil {
		parts = append(parts, err.Error())
		e, ok := err.(Error)
		if !ok {
			break
		}
		err = e.Unwrap()
	}
	return strings.Join(parts, " <- ")
}
