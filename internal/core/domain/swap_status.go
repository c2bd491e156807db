package domain

// SwapStatus is the status of the swap state machine. Codes along the happy
// path are increasing so that transitions can be checked by comparison.
type SwapStatus int

const (
	SwapStatusUndefined SwapStatus = iota
	SwapStatusInitiated
	SwapStatusSourceLocked
	SwapStatusWaitingForDestinationActivity
	SwapStatusSecretReleasable
	SwapStatusSecretReleased
	SwapStatusWaitingForSourceClaims
	SwapStatusCompleted
	SwapStatusExpired
	SwapStatusRefunded
)

var swapStatusNames = map[SwapStatus]string{
	SwapStatusUndefined:                     "Undefined",
	SwapStatusInitiated:                     "Initiated",
	SwapStatusSourceLocked:                  "SourceLocked",
	SwapStatusWaitingForDestinationActivity: "WaitingForDestinationActivity",
	SwapStatusSecretReleasable:              "SecretReleasable",
	SwapStatusSecretReleased:                "SecretReleased",
	SwapStatusWaitingForSourceClaims:        "WaitingForSourceClaims",
	SwapStatusCompleted:                     "Completed",
	SwapStatusExpired:                       "Expired",
	SwapStatusRefunded:                      "Refunded",
}

func (s SwapStatus) String() string {
	if name, ok := swapStatusNames[s]; ok {
		return name
	}
	return "Unknown"
}

// IsTerminal returns whether no further transition is possible.
func (s SwapStatus) IsTerminal() bool {
	return s == SwapStatusCompleted || s == SwapStatusRefunded
}

// ParseSwapStatus is the inverse of String.
func ParseSwapStatus(name string) (SwapStatus, bool) {
	for status, n := range swapStatusNames {
		if n == name {
			return status, true
		}
	}
	return SwapStatusUndefined, false
}

// onHappyPath returns whether s is at or past target without having left the
// happy path.
func (s SwapStatus) onHappyPath(target SwapStatus) bool {
	return s >= target && s <= SwapStatusCompleted
}
