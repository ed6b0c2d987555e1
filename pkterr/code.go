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

// Package pkterr provides the error-kind registry shared by every component
// of the TCP server runtime core: a numeric CodeError classification (one
// block of codes per owning package), automatic stack-frame capture, and
// parent/child error hierarchy, so a caller can walk from a handler failure
// back to the accept-loop error that wrapped it.
package pkterr

import (
	"runtime"
	"strconv"
)

// CodeError is a numeric error classification, analogous to an HTTP status
// code but scoped per owning package via the MinPkg* offsets below.
type CodeError uint16

const (
	// UnknownError is the fallback code for an error with no registered kind.
	UnknownError CodeError = 0

	unknownMessage = "unknown error"
)

// Package offsets. Each package in this module reserves a 20-wide block so
// iota-based const blocks in that package never collide with another's.
const (
	MinPkgBufPool CodeError = (iota + 1) * 20
	MinPkgObjPool
	MinPkgAcceptCtx
	MinPkgTCPServer
	MinPkgTCPConn
	MinPkgDispatch
	MinPkgPacketContext
	MinPkgAdmission
	MinPkgIdleWheel
	MinPkgTaskGroup

	// MinAvailable is the first offset not reserved by this module; a host
	// embedding this core for its own error codes should start above it.
	MinAvailable
)

var registry = make(map[CodeError]func(code CodeError) string)

// RegisterMessages installs a message-lookup function for every code in a
// package's block. It is meant to be called once from that package's init().
func RegisterMessages(fn func(code CodeError) string, codes ...CodeError) {
	for _, c := range codes {
		registry[c] = fn
	}
}

// Message returns the human-readable message registered for code, or the
// generic unknown-error message if nothing was registered.
func (c CodeError) Message() string {
	if c == UnknownError {
		return unknownMessage
	}
	if fn, ok := registry[c]; ok {
		if m := fn(c); m != "" {
			return m
		}
	}
	return unknownMessage
}

// Uint16 returns the raw numeric value of the code.
func (c CodeError) Uint16() uint16 {
	return uint16(c)
}

// String implements fmt.Stringer.
func (c CodeError) String() string {
	return strconv.Itoa(int(c))
}

// Error builds a new Error carrying this code, its registered message, and
// the given parent errors (any of which may be nil; nils are dropped).
func (c CodeError) Error(parent ...error) Error {
	return newError(c, c.Message(), callerFrame(2), parent...)
}

// Errorf builds a new Error carrying this code and a custom message instead
// of the registered one (still tagged with the code for IsCode/HasCode).
func (c CodeError) Errorf(format string, args ...interface{}) Error {
	return newErrorf(c, callerFrame(2), format, args...)
}

func callerFrame(skip int) runtime.Frame {
	var frame runtime.Frame

	pc := make([]uintptr, 1)
	if n := runtime.Callers(skip+1, pc); n > 0 {
		frames := runtime.CallersFrames(pc[:n])
		frame, _ = frames.Next()
	}

	return frame
}
