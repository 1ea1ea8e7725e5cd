package wsutil

import "log"

// SafeSend sends data to a channel without panicking if the channel is closed.
// If the channel is full or closed, the send is skipped: a slow or dead reader
// must never stall a match. Panics are recovered and logged for debugging.
// Returns false when the frame was dropped.
func SafeSend(ch chan []byte, data []byte) (ok bool) {
	if ch == nil {
		return false
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[wsutil] SafeSend recovered panic: %v", r)
			ok = false
		}
	}()
	select {
	case ch <- data:
		return true
	default:
		return false
	}
}
