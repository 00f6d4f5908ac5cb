package filesecurity

import (
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"stegguard/pkg/models"
)

// VerifyIntegrity computes the SHA-256 and SHA-512 digests of buf. When
// expectedSHA256 is set, the check is valid only if it matches.
func VerifyIntegrity(buf []byte, expectedSHA256 string) *models.IntegrityCheck {
	sum256 := sha256.Sum256(buf)
	sum512 := sha512.Sum512(buf)

	check := &models.IntegrityCheck{
		IsValid: true,
		SHA256:  hex.EncodeToString(sum256[:]),
		SHA512:  hex.EncodeToString(sum512[:]),
		Size:    len(buf),
	}

	if expected := strings.ToLower(strings.TrimSpace(expectedSHA256)); expected != "" {
		check.IsValid = subtle.ConstantTimeCompare([]byte(expected), []byte(check.SHA256)) == 1
	}
	return check
}
