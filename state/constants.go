package state

import "time"

var (
	DefaultRounds           = 200
	DefaultArea             = 1000.0
	DefaultRange            = 250.0
	DefaultPeriodicInterval = 15 // rounds between full dumps
	DefaultTriggerThreshold = 3  // changed rows that justify an incremental update
	DefaultMaxHops          = 16
	DefaultHopLatency       = 1.0
	DefaultPropagationSpeed = 300.0
	DefaultPacketsPerRound  = 2

	// TriggerHoldoff suppresses repeated triggered updates from the same host.
	TriggerHoldoff = time.Duration(0)
	// RoundDelay is the wall-clock pause between simulation rounds.
	RoundDelay = time.Duration(0)

	// SelfSeqnoStep keeps a host's own seqno even when it advances.
	SelfSeqnoStep = uint32(2)

	AddressBase = [4]byte{10, 0, 0, 0}
)
