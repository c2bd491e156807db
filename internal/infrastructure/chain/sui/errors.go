package sui

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/tdex-network/xswapd/internal/core/domain"
)

// abort codes of the escrow Move module.
var abortCodes = map[uint64]error{
	1: domain.ErrSecretMismatch,
	2: domain.ErrOverFill,
	3: domain.ErrExpired,
	4: domain.ErrNotYetExpired,
	5: domain.ErrEscrowSettled,
	6: domain.ErrEscrowRefunded,
	7: domain.ErrInvalidTimeLock,
	8: domain.ErrInsufficientFunds,
	9: domain.ErrUnauthorized,
}

var (
	abortRegexp        = regexp.MustCompile(`MoveAbort\(.*,\s*(\d+)\)`)
	insufficientRegexp = regexp.MustCompile(`(?i)insufficient.*(coin|balance|gas)`)
)

// mapAbort turns the error of a failed transaction effect into a domain
// error when it carries a known abort code of the escrow module.
func mapAbort(msg string) error {
	if m := abortRegexp.FindStringSubmatch(msg); len(m) == 2 {
		code, err := strconv.ParseUint(m[1], 10, 64)
		if err == nil {
			if e, ok := abortCodes[code]; ok {
				return fmt.Errorf("%w: %s", e, msg)
			}
		}
	}
	if insufficientRegexp.MatchString(msg) {
		return fmt.Errorf("%w: %s", domain.ErrInsufficientFunds, msg)
	}
	return fmt.Errorf("transaction failed: %s", msg)
}
