package admin

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/nspcc-dev/neo-go/pkg/encoding/fixedn"
)

// EtherDecimals is the number of decimal places between wei and ether.
const EtherDecimals = 18

// FormatEther converts wei amount to ether string. Whole amounts keep one
// fractional digit, e.g. 10^18 is "1.0".
func FormatEther(wei *big.Int) string {
	s := fixedn.ToString(wei, EtherDecimals)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// ParseEther converts non-negative ether amount string to wei.
func ParseEther(s string) (*big.Int, error) {
	v, err := fixedn.FromString(strings.TrimSpace(s), EtherDecimals)
	if err != nil {
		return nil, fmt.Errorf("invalid amount '%s': %w", s, err)
	}
	if v.Sign() < 0 {
		return nil, errors.New("negative amount")
	}
	return v, nil
}
