package ledger

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

const (
	checksumPairSeparator  = "|"
	checksumValueSeparator = "="
)

// ChecksumSigner signs and verifies gateway parameters with HMAC-SHA256.
type ChecksumSigner struct {
	secret []byte
}

// NewChecksumSigner requires a non-empty merchant secret.
func NewChecksumSigner(secret string) (ChecksumSigner, error) {
	if strings.TrimSpace(secret) == "" {
		return ChecksumSigner{}, fmt.Errorf("%w: checksum secret is empty", ErrInvalidServiceConfig)
	}
	return ChecksumSigner{secret: []byte(secret)}, nil
}

// Sign returns the hex checksum of every parameter except the checksum itself.
func (signer ChecksumSigner) Sign(params map[string]string) string {
	mac := hmac.New(sha256.New, signer.secret)
	mac.Write([]byte(canonicalParams(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the checksum and compares it in constant time.
func (signer ChecksumSigner) Verify(params map[string]string, checksum string) bool {
	if len(signer.secret) == 0 || checksum == "" {
		return false
	}
	expected := signer.Sign(params)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(checksum))))
}

func canonicalParams(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		if key == GatewayParamChecksum {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+checksumValueSeparator+params[key])
	}
	return strings.Join(pairs, checksumPairSeparator)
}
