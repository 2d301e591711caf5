package stats

// AgcPrepareStatus is the exposure-control status published into frame
// metadata by the AGC algorithm. Consumers treat a missing entry as
// unlocked.
type AgcPrepareStatus struct {
	Locked bool
}
