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

package tcpserver

import "github.com/nabbar/tcpkernel/pkterr"

const (
	ErrInvalidConfig pkterr.CodeError = pkterr.MinPkgTCPServer + iota
	ErrMissingCollaborator
	ErrBind
	ErrInvalidState
)

func init() {
	pkterr.RegisterMessages(message, ErrInvalidConfig, ErrMissingCollaborator, ErrBind, ErrInvalidState)
}

func message(code pkterr.CodeError) string {
	switch code {
	case ErrInvalidConfig:
		return "tcpserver: invalid configuration"
	case ErrMissingCollaborator:
		return "tcpserver: catalog and handler table are required"
	case ErrBind:
		return "tcpserver: failed to bind listening socket"
	case ErrInvalidState:
		return "tcpserver: operation not valid in the current lifecycle state"
	default:
		return ""
	}
}
