package accounts

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/goliatone/go-errors"
)

// OpaqueTokenBytes is the entropy of verification and reset tokens. The hex
// encoded form is twice this length.
const OpaqueTokenBytes = 20

// MintOpaqueToken returns a uniform random hex token with no decodable
// structure, used only for exact match lookup.
func MintOpaqueToken() (string, error) {
	buf := make([]byte, OpaqueTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", errors.Wrap(err, errors.CategoryInternal, "failed to read token entropy")
	}
	return hex.EncodeToString(buf), nil
}

// MintResetToken returns an opaque reset token and its expiry,
// ResetTokenTTL from now.
func MintResetToken(now time.Time) (string, time.Time, error) {
	token, err := MintOpaqueToken()
	if err != nil {
		return "", time.Time{}, err
	}
	return token, now.Add(ResetTokenTTL), nil
}
