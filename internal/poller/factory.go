package poller

// New selects a Poller implementation. portableOnly forces the
// goroutine-based backend even on platforms with a native one (useful for
// tests that want deterministic, OS-independent behavior).
func New(portableOnly bool) Poller {
	if portableOnly {
		return NewPortable()
	}
	return NewOS()
}
