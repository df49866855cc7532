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
	"log"

	"github.com/osterlund/virtualint/kernel/hal"
)

type connectType int

const (
	noConnect connectType = iota
	normalConnect
	chainConnect
	unknownConnect
)

// dispatchInfo is a transient snapshot of a vector's current binding: its
// classification, the occupying object (chain head if shared) and the
// stage entry points appropriate to the vector's dispatch shape.
type dispatchInfo struct {
	typ       connectType
	interrupt *Object

	noDispatch        hal.Address
	interruptDispatch hal.Address
	floatingDispatch  hal.Address
	chainedDispatch   hal.Address
	flat              *hal.Slot
}

// vectorInfo classifies the current occupant of a vector. It has no side
// effects and is safe to call with the dispatcher lock held.
func (k *Kernel) vectorInfo(vector int) dispatchInfo {
	var di dispatchInfo
	var current hal.Target

	slot := k.hal.DispatchSlot(vector)
	switch slot.Kind {
	case hal.DirectDispatch:
		index := k.hal.VectorToIndex(vector)
		di.noDispatch = hal.Address(UnexpectedStub(index))
		di.interruptDispatch = interruptDispatchAddr
		di.floatingDispatch = floatingDispatchAddr
		di.chainedDispatch = chainedDispatchAddr
		current = k.hal.TableTarget(index)

	case hal.FlatDispatch:
		di.noDispatch = slot.NoDispatch
		di.interruptDispatch = interruptDispatch2Addr
		di.floatingDispatch = interruptDispatch2Addr
		di.chainedDispatch = chainedDispatch2Addr
		di.flat = slot.Flat
		current = slot.Flat.Target

	default:
		bugCheck("interrupt: vector %#x has unrecognized dispatch kind %d", vector, slot.Kind)
	}

	if current == nil || current.DispatchAddress() == di.noDispatch {
		di.typ = noConnect
		return di
	}

	entry, ok := current.(Entry)
	if !ok {
		di.typ = unknownConnect
		log.Printf("interrupt: vector %#x target %#x not understood", vector, current.DispatchAddress())
		return di
	}
	di.interrupt = entry.tramp.owner

	switch target := entry.tramp.branchTarget(); target {
	case di.chainedDispatch:
		di.typ = chainConnect
	case di.interruptDispatch, di.floatingDispatch:
		di.typ = normalConnect
	default:
		// The occupant's patched code branches somewhere we do not
		// recognize. Callers must refuse to share with it.
		di.typ = unknownConnect
		log.Printf("interrupt: vector %#x dispatch %#x not understood", vector, target)
	}
	return di
}

// VectorState is the public classification of a vector's occupancy.
type VectorState int

const (
	VectorUnused VectorState = iota
	VectorExclusive
	VectorChained
	VectorUnknown
)

func (s VectorState) String() string {
	switch s {
	case VectorUnused:
		return "unused"
	case VectorExclusive:
		return "exclusive"
	case VectorChained:
		return "chained"
	}
	return "unknown"
}

// InspectVector reports a vector's occupancy and, for occupied vectors,
// its objects in dispatch order. The snapshot is taken under the
// dispatcher lock; it must not be called from a service routine.
func (k *Kernel) InspectVector(vector int) (VectorState, []*Object) {
	cpu, revert := k.sys.PinTo(0)
	old := k.sys.LockDispatcher(cpu)
	defer func() {
		k.sys.UnlockDispatcher(cpu, old)
		revert()
	}()

	di := k.vectorInfo(vector)
	switch di.typ {
	case noConnect:
		return VectorUnused, nil
	case normalConnect:
		return VectorExclusive, []*Object{di.interrupt}
	case chainConnect:
		chain := []*Object{di.interrupt}
		for i := di.interrupt.next; i != di.interrupt; i = i.next {
			chain = append(chain, i)
		}
		return VectorChained, chain
	}
	return VectorUnknown, nil
}
