package frame

import "bytes"

// Deduper drops a transport unit that repeats the one immediately before it.
//
// BLE UART notifications are occasionally redelivered; the repeat must be
// discarded before framing or its bytes would be spliced into the stream
// twice. Only pairs are caught: after a suppression the history is cleared,
// so a third identical unit in a row is accepted.
type Deduper struct {
	prev []byte
	have bool
}

// Accept reports whether unit should be passed on to the Assembler.
func (d *Deduper) Accept(unit []byte) bool {
	if d.have && bytes.Equal(d.prev, unit) {
		d.prev = d.prev[:0]
		d.have = false
		return false
	}
	d.prev = append(d.prev[:0], unit...)
	d.have = true
	return true
}

// Reset forgets the previous unit.
func (d *Deduper) Reset() {
	d.prev = d.prev[:0]
	d.have = false
}
