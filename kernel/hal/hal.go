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

// Package hal is the boundary between the interrupt core and the platform:
// line control, the shape of a vector's dispatch slot and the primitives
// for reading and writing dispatch targets.
package hal

import "github.com/osterlund/virtualint/kernel/irql"

// Mode is the electrical signaling mode of an interrupt line.
type Mode int

const (
	LevelSensitive Mode = iota
	Latched
)

func (m Mode) String() string {
	if m == LevelSensitive {
		return "level"
	}
	return "latched"
}

// DispatchKind describes the shape of a vector's dispatch slot.
type DispatchKind int

const (
	// DirectDispatch vectors occupy a slot in the primary vector table.
	DirectDispatch DispatchKind = iota

	// FlatDispatch vectors are routed through a second level table and
	// are read and written by slot reference.
	FlatDispatch
)

// Address identifies a location in the simulated code address space.
type Address uint32

// Target is anything a vector slot can branch to.
type Target interface {
	DispatchAddress() Address
}

// Stub is the address of an unexpected-interrupt handler.
type Stub Address

func (s Stub) DispatchAddress() Address {
	return Address(s)
}

// Slot is one entry of a flat dispatch table.
type Slot struct {
	Target Target
}

// SlotInfo describes a vector's dispatch slot. NoDispatch and Flat are
// only valid for FlatDispatch vectors; direct vectors derive their
// unexpected-interrupt target from the kernel's own stub range.
type SlotInfo struct {
	Kind       DispatchKind
	NoDispatch Address
	Flat       *Slot
}

// Controller is the platform interrupt controller and vector table owner.
type Controller interface {
	// EnableLine unmasks the interrupt line behind vector. It reports
	// false when the platform cannot service the vector.
	EnableLine(vector int, level irql.Level, mode Mode) bool
	DisableLine(vector int, level irql.Level)

	// DispatchSlot reports the dispatch shape of a vector.
	DispatchSlot(vector int) SlotInfo

	// VectorToIndex maps a vector to its primary table index.
	VectorToIndex(vector int) int
	TableTarget(index int) Target
	SetTableTarget(index int, t Target)

	// SweepCache establishes instruction visibility after patched
	// dispatch code has been written and before the vector is re-armed.
	SweepCache()
}
