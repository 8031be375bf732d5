package address

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	acct, err := Encode("stars", bytes.Repeat([]byte{0x11}, 20))
	require.NoError(t, err)
	contract, err := Encode("stars", bytes.Repeat([]byte{0x22}, 32))
	require.NoError(t, err)

	t.Run("account", func(t *testing.T) {
		assert.NoError(t, Validate(acct, "stars"))
	})
	t.Run("contract", func(t *testing.T) {
		assert.NoError(t, Validate(contract, "stars"))
	})
	t.Run("any prefix", func(t *testing.T) {
		assert.NoError(t, Validate(acct, ""))
	})
	t.Run("wrong prefix", func(t *testing.T) {
		other, err := Encode("cosmos", bytes.Repeat([]byte{0x11}, 20))
		require.NoError(t, err)
		assert.Error(t, Validate(other, "stars"))
	})
	t.Run("bad checksum", func(t *testing.T) {
		bad := acct[:len(acct)-1] + "q"
		if bad == acct {
			bad = acct[:len(acct)-1] + "p"
		}
		assert.Error(t, Validate(bad, "stars"))
	})
	t.Run("empty", func(t *testing.T) {
		assert.Error(t, Validate("  ", "stars"))
	})
	t.Run("wrong length", func(t *testing.T) {
		short, err := Encode("stars", []byte{1, 2, 3})
		require.NoError(t, err)
		assert.Error(t, Validate(short, "stars"))
	})
}

func TestValidateOriginalMinters(t *testing.T) {
	for _, m := range []string{
		"stars18tj7yvh7qxv29wtr4angy4gqycrrj9e5j9susaes7vd4tqafzthq5h2m8r",
		"stars1u2cup60zf0dujuhd4sth09gvdc383p0jguaqp3",
	} {
		assert.NoError(t, Validate(m, "stars"), m)
	}
}
