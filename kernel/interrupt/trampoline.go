/*
Copyright (c) 2019-2021 Andreas T Jonsson

This software is provided 'as-is', without any express or implied
warranty. In no event will the authors be held liable for any damages
arising from the use of this software.

Permission is granted to anyone to use this software for any purpose,
including commercial applications, and to alter it and redistribute it
freely, subject to the following restrictions:

1. The origin of this software must not be misrepresented; you must not
   claim that you wrote the original software. If you use this software
   in a product, an acknowledgment in the product documentation would be
   appreciated but is not required.
2. Altered source versions must be plainly marked as such, and must not be
   misrepresented as being the original software.
3. This notice may not be removed or altered from any source distribution.
*/

package interrupt

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/osterlund/virtualint/kernel/hal"
)

// Dispatch-stage entry points. The values stand in for the code addresses
// of the corresponding kernel stages; the inspector classifies a vector by
// comparing a trampoline's patched branch against them.
const (
	interruptDispatchAddr hal.Address = 0x80001000
	floatingDispatchAddr  hal.Address = 0x80001040
	chainedDispatchAddr   hal.Address = 0x80001080

	// Second level stages for flat dispatch vectors. Normal and floating
	// dispatch share an entry at this level.
	interruptDispatch2Addr hal.Address = 0x80001100
	chainedDispatch2Addr   hal.Address = 0x80001140
)

// Unexpected-interrupt stub range for direct vectors. The platform's
// primary table is populated with these at reset.
const (
	unexpectedRangeStart hal.Address = 0x80002000
	unexpectedEntrySize              = 16
)

// UnexpectedStub returns the unexpected-interrupt handler for a primary
// table index.
func UnexpectedStub(index int) hal.Stub {
	return hal.Stub(unexpectedRangeStart + hal.Address(index)*unexpectedEntrySize)
}

// The dispatch template mirrors a small i386 thunk:
//
//	b8 xx xx xx xx    mov eax, owner     patched at ownerPatchOffset
//	e9 xx xx xx xx    jmp rel32 stage    patched at branchPatchOffset
//	cc cc             padding
//
// Flat dispatch vectors enter at the jmp, direct vectors at the base.
const (
	templateSize         = 12
	ownerPatchOffset     = 1
	branchPatchOffset    = 6
	secondDispatchOffset = 5
)

var dispatchTemplate = [templateSize]byte{
	0xB8, 0xCC, 0xCC, 0xCC, 0xCC,
	0xE9, 0xCC, 0xCC, 0xCC, 0xCC,
	0xCC, 0xCC,
}

// Code address allocator for trampoline copies. Spacing keeps every copy
// disjoint so branch targets stay unambiguous.
var codeBreak uint32 = 0x80100000

// Trampoline is one interrupt object's private copy of the dispatch
// template. It is embedded in the object and must not move after
// initialization.
type Trampoline struct {
	code  [templateSize]byte
	base  hal.Address
	owner *Object
}

func (t *Trampoline) init(owner *Object) {
	t.code = dispatchTemplate
	t.base = hal.Address(atomic.AddUint32(&codeBreak, 32) - 32)
	t.owner = owner
	t.patchOwner(owner.id)
}

// patchOwner writes the owning object's identity into the template's
// immediate field.
func (t *Trampoline) patchOwner(id uint32) {
	binary.LittleEndian.PutUint32(t.code[ownerPatchOffset:], id)
}

func (t *Trampoline) ownerID() uint32 {
	return binary.LittleEndian.Uint32(t.code[ownerPatchOffset:])
}

// patchBranch points the template's jmp at a dispatch stage. The relative
// displacement is computed from the end of the patch site, as the
// processor would.
func (t *Trampoline) patchBranch(target hal.Address) {
	site := t.base + branchPatchOffset
	binary.LittleEndian.PutUint32(t.code[branchPatchOffset:], uint32(target-(site+4)))
}

// branchTarget decodes the currently patched dispatch stage.
func (t *Trampoline) branchTarget() hal.Address {
	rel := binary.LittleEndian.Uint32(t.code[branchPatchOffset:])
	return t.base + branchPatchOffset + 4 + hal.Address(rel)
}

// Entry is the executable view of a trampoline as installed in a dispatch
// slot: the trampoline base for direct vectors, the second-dispatch label
// for flat ones.
type Entry struct {
	tramp *Trampoline
	addr  hal.Address
}

func (e Entry) DispatchAddress() hal.Address {
	return e.addr
}

func (t *Trampoline) directEntry() Entry {
	return Entry{t, t.base}
}

func (t *Trampoline) flatEntry() Entry {
	return Entry{t, t.base + secondDispatchOffset}
}
