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

import "github.com/osterlund/virtualint/kernel/hal"

// bind patches the object's trampoline for the requested connection type
// and installs it as the vector's active target. Callers hold the
// dispatcher lock. The trampoline may be concurrently fetched by a
// reentrant interrupt on another processor, so the patched code is swept
// before the vector is re-armed.
func (k *Kernel) bind(i *Object, typ connectType) {
	di := k.vectorInfo(i.vector)

	var target hal.Target
	if typ == noConnect {
		target = hal.Stub(di.noDispatch)
	} else {
		stage := di.chainedDispatch
		if typ == normalConnect {
			stage = di.interruptDispatch
			if i.floatingSave {
				stage = di.floatingDispatch
			}
		}

		i.tramp.patchBranch(stage)
		k.hal.SweepCache()

		if di.flat != nil {
			target = i.tramp.flatEntry()
		} else {
			target = i.tramp.directEntry()
		}
	}

	if di.flat != nil {
		di.flat.Target = target
	} else {
		k.hal.SetTableTarget(k.hal.VectorToIndex(i.vector), target)
	}
}
