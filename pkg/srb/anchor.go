package srb

// Anchor is an out-of-band marker riding alongside the byte stream at a
// fixed logical offset. SRB never interprets Payload; ownership transfers
// into the ring at PutAnchor and back out at GetAnchor.
type Anchor struct {
	Offset  uint64
	Payload any
}

// anchorNode is a singly linked list node. The list is rooted at a dummy
// head node (head.next is the first real anchor) purely so insertion
// never special-cases an empty list, mirroring the original C layout.
type anchorNode struct {
	anchor Anchor
	next   *anchorNode
}

// insert walks from head until it finds the last node whose offset is
// <= a.Offset, then splices a new node in after it. This keeps the list
// sorted by offset and, among equal offsets, preserves insertion order:
// a later PutAnchor at the same offset as an earlier one lands behind it.
func insert(head *anchorNode, a Anchor) {
	n := &anchorNode{anchor: a}
	current := head
	for {
		if current.next == nil || current.next.anchor.Offset > a.Offset {
			n.next = current.next
			current.next = n
			return
		}
		current = current.next
	}
}
