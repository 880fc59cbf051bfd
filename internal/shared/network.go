package shared

import "sync/atomic"

// NetworkStatus is a process-wide online/offline flag.
//
// The REST client reports transitions as requests succeed or fail at the
// transport level; consumers read the current value synchronously when
// picking an error message.
type NetworkStatus struct {
	offline atomic.Bool
}

// NewNetworkStatus returns a status that starts online.
func NewNetworkStatus() *NetworkStatus {
	return &NetworkStatus{}
}

// Online reports the current flag. A nil status is always online.
func (n *NetworkStatus) Online() bool {
	if n == nil {
		return true
	}
	return !n.offline.Load()
}

// SetOnline records the observed connectivity and reports whether it changed.
// It is a no-op on a nil status.
func (n *NetworkStatus) SetOnline(online bool) (changed bool) {
	if n == nil {
		return false
	}
	return n.offline.Swap(!online) == online
}
