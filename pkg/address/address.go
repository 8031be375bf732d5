package address

import (
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

// Validate checks that addr is a well-formed bech32 address whose human
// readable part equals prefix (e.g. "stars"). An empty prefix accepts any hrp.
func Validate(addr, prefix string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return fmt.Errorf("empty address")
	}
	hrp, data, err := bech32.Decode(addr)
	if err != nil {
		return fmt.Errorf("address %q: %w", addr, err)
	}
	if prefix != "" && hrp != prefix {
		return fmt.Errorf("address %q: prefix %q, want %q", addr, hrp, prefix)
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return fmt.Errorf("address %q: %w", addr, err)
	}
	// 20 bytes for accounts, 32 for contracts
	if len(raw) != 20 && len(raw) != 32 {
		return fmt.Errorf("address %q: unexpected length %d", addr, len(raw))
	}
	return nil
}

// Encode builds a bech32 address from raw bytes. Used to derive fixtures and
// to re-prefix addresses across cosmos chains.
func Encode(prefix string, raw []byte) (string, error) {
	conv, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(prefix, conv)
}
