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
	"github.com/sirupsen/logrus"
)

// Logger is the minimal surface this package needs from a logrus.Logger,
// so tests can substitute a logrus.Logger pointed at a buffer.
type Logger interface {
	WithFields(fields logrus.Fields) *logrus.Entry
	IsLevelEnabled(level logrus.Level) bool
}

// Entry is a single structured log record under construction. It is not
// safe for concurrent use by multiple goroutines (matching the reference
// logger's documented contract); build and Log one entry per call site.
type Entry struct {
	log    Logger
	lvl    Level
	msg    string
	fields *Fields
	errs   []error
}

// NewEntry starts building an entry at the given level against log (which
// may be nil, in which case Log is a no-op).
func NewEntry(log Logger, lvl Level, msg string) *Entry {
	return &Entry{log: log, lvl: lvl, msg: msg, fields: NewFields()}
}

// FieldAdd adds one field and returns the entry for chaining.
func (e *Entry) FieldAdd(key string, val interface{}) *Entry {
	e.fields.Add(key, val)
	return e
}

// FieldSet replaces the entry's field set.
func (e *Entry) FieldSet(fields *Fields) *Entry {
	if fields != nil {
		e.fields = fields
	}
	return e
}

// ErrorAdd attaches one or more errors to the entry, dropping nils.
func (e *Entry) ErrorAdd(err ...error) *Entry {
	for _, er := range err {
		if er != nil {
			e.errs = append(e.errs, er)
		}
	}
	return e
}

// Check reports whether this entry would actually be emitted.
func (e *Entry) Check() bool {
	return e.log != nil && e.lvl != NilLevel && e.log.IsLevelEnabled(e.lvl.Logrus())
}

// Log emits the entry if it passes Check; otherwise it is a silent no-op.
func (e *Entry) Log() {
	if !e.Check() {
		return
	}

	fields := e.fields.Logrus()
	if len(e.errs) > 0 {
		msgs := make([]string, 0, len(e.errs))
		for _, er := range e.errs {
			msgs = append(msgs, er.Error())
		}
		fields["errors"] = msgs
	}

	le := e.log.WithFields(fields)

	switch e.lvl {
	case PanicLevel:
		le.Panic(e.msg)
	case FatalLevel:
		le.Fatal(e.msg)
	case ErrorLevel:
		le.Error(e.msg)
	case WarnLevel:
		le.Warn(e.msg)
	case InfoLevel:
		le.Info(e.msg)
	case DebugLevel:
		le.Debug(e.msg)
	case TraceLevel:
		le.Trace(e.msg)
	}
}
