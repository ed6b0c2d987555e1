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

package bufpool

import "github.com/nabbar/tcpkernel/pkterr"

const (
	ErrInvalidConfig pkterr.CodeError = pkterr.MinPkgBufPool + iota
	ErrBudgetExceeded
	ErrNoFallback
	ErrPoolOverflow
)

func init() {
	pkterr.RegisterMessages(message, ErrInvalidConfig, ErrBudgetExceeded, ErrNoFallback, ErrPoolOverflow)
}

func message(code pkterr.CodeError) string {
	switch code {
	case ErrInvalidConfig:
		return "bufpool: invalid configuration"
	case ErrBudgetExceeded:
		return "bufpool: memory budget exceeded, growth refused"
	case ErrNoFallback:
		return "bufpool: requested size exceeds largest class and fallback is disabled"
	case ErrPoolOverflow:
		return "bufpool: returned buffer of unknown size dropped"
	default:
		return ""
	}
}
