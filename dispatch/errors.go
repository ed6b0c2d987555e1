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

package dispatch

import "github.com/nabbar/tcpkernel/pkterr"

const (
	ErrDeserialize pkterr.CodeError = pkterr.MinPkgDispatch + iota
	ErrNoHandler
)

func init() {
	pkterr.RegisterMessages(message, ErrDeserialize, ErrNoHandler)
}

func message(code pkterr.CodeError) string {
	switch code {
	case ErrDeserialize:
		return "dispatch: catalog failed to deserialize payload"
	case ErrNoHandler:
		return "dispatch: no handler registered for opcode"
	default:
		return ""
	}
}

const hexPreviewMax = 16

// hexPreview renders up to max bytes of b as a space-separated hex string,
// used for the bounded preview logged on a deserialize failure.
func hexPreview(b []byte, max int) string {
	if max <= 0 || max > hexPreviewMax {
		max = hexPreviewMax
	}
	if len(b) < max {
		max = len(b)
	}

	const hexdigits = "0123456789abcdef"
	out := make([]byte, 0, max*3)
	for i := 0; i < max; i++ {
		if i > 0 {
			out = append(out, ' ')
		}
		v := b[i]
		out = append(out, hexdigits[v>>4], hexdigits[v&0x0f])
	}
	return string(out)
}
