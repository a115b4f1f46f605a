package domain

import (
	"strconv"
	"strings"
)

// Licence keys look like RO-XXXX-XXXX-XXXX where X is an uppercase
// alphanumeric character. The last two characters encode a base-36
// checksum of the ten preceding ones; this is a formatting check only,
// not a cryptographic one.

// ValidateLicenseKey checks format and checksum, returning
// ErrInvalidLicense on any mismatch.
func ValidateLicenseKey(key string) error {
	key = strings.ToUpper(strings.TrimSpace(key))
	parts := strings.Split(key, "-")
	if len(parts) != 4 || parts[0] != "RO" {
		return ErrInvalidLicense
	}
	for _, p := range parts[1:] {
		if len(p) != 4 {
			return ErrInvalidLicense
		}
		for _, c := range p {
			if !isUpperAlnum(c) {
				return ErrInvalidLicense
			}
		}
	}

	body := parts[1] + parts[2] + parts[3]
	payload, check := body[:10], body[10:]

	var sum int
	for _, c := range payload {
		sum += int(c)
	}

	want, err := strconv.ParseInt(check, 36, 32)
	if err != nil {
		return ErrInvalidLicense
	}
	if sum%1296 != int(want) {
		return ErrInvalidLicense
	}
	return nil
}

// MaskLicenseKey hides all but the last group of a key for display.
func MaskLicenseKey(key string) string {
	key = strings.TrimSpace(key)
	parts := strings.Split(key, "-")
	if len(parts) != 4 {
		return "****"
	}
	return "RO-****-****-" + parts[3]
}

func isUpperAlnum(c rune) bool {
	return (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
