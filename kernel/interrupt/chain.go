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

// Objects sharing a vector form a circular doubly linked chain. The chain
// head is whichever member the vector currently branches to; dispatch
// walks in insertion order from there. All mutation happens under the
// dispatcher lock.

func (i *Object) initChain() {
	i.next = i
	i.prev = i
}

// appendChain inserts i at the tail of head's chain.
func (i *Object) appendChain(head *Object) {
	i.prev = head.prev
	i.next = head
	head.prev.next = i
	head.prev = i
}

// removeChain unlinks i from its chain.
func (i *Object) removeChain() {
	i.prev.next = i.next
	i.next.prev = i.prev
	i.next = i
	i.prev = i
}

// aloneInChain reports whether i is the only member of its chain.
func (i *Object) aloneInChain() bool {
	return i.next == i
}
