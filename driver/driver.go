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

// Package driver defines the device driver side of the interrupt core.
package driver

import "github.com/osterlund/virtualint/kernel/interrupt"

// Host is what a driver sees of the machine it is installed in.
type Host interface {
	Kernel() *interrupt.Kernel
	NumProcessors() int

	// Interrupt delivers a hardware interrupt on the given processor.
	Interrupt(processor, vector int) bool
}

type Driver interface {
	Name() string
	Reset()
	Install(Host) error
}

type DriverCloser interface {
	Close() error
}

type NullDevice struct {
}

func (*NullDevice) Install(Host) error {
	return nil
}

func (*NullDevice) Name() string {
	return "Null Device"
}

func (*NullDevice) Reset() {
}
