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

// Package catalog declares the external collaborator contract this module
// dispatches against: the wire format is owned by the host application, not
// by this package. Nothing here is a working codec — it is the seam a host
// implements to plug its own packet types in. The handler table itself
// lives in package dispatch, which is the component that routes by opcode.
package catalog

// OpCode identifies a packet's handler within the handler table.
type OpCode = uint16

// Packet is opaque to the dispatcher beyond its opcode and a type identity
// used for logging.
type Packet interface {
	// OpCode returns the handler-table key for this packet.
	OpCode() OpCode
	// TypeName returns a short identity string for logging (e.g. the
	// concrete packet type's name); it is never parsed, only logged.
	TypeName() string
}

// Catalog decodes raw bytes into a typed Packet. Implementations own the
// wire format entirely; this module only calls Decode.
type Catalog interface {
	// Decode parses b into a Packet, or returns an error describing why it
	// could not. Implementations should not panic on malformed input.
	Decode(b []byte) (Packet, error)
}

// PriorityHint is an optional extension a Catalog may implement to let the
// channel dispatcher assign a priority class without waiting for handler
// resolution. Catalogs that don't implement it are treated as always
// reporting 0 (normal priority).
type PriorityHint interface {
	// Priority returns a hint byte derived from the undecoded payload b;
	// a non-zero value requests high priority.
	Priority(b []byte) uint8
}

