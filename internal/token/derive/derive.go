// Package derive turns payment identity into the 20-digit numeric codes
// loaded into prepaid meters. Codes are deterministic for a given input
// tuple and collision-resistant, but they are identifiers, not bearer
// credentials: a code is only authoritative alongside its stored token row.
package derive

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// CodeLength is the standard prepaid token length.
const CodeLength = 20

const extendSalt = "powerpay/token-extend"

// Code derives a 20-digit numeric token code from the meter number, kobo
// amount, payment reference and a disambiguation value. Digits are collected
// from the hex digest of a SHA-256 hash over the seed; if the primary digest
// runs out of digits, an independently salted secondary hash over
// (seed + digits-so-far) extends the stream.
func Code(meterNumber string, amount int64, paymentReference, disambiguator string) string {
	seed := fmt.Sprintf("%s-%d-%s-%s", meterNumber, amount, paymentReference, disambiguator)

	digits := collectDigits(hashHex(seed), make([]byte, 0, CodeLength))
	for len(digits) < CodeLength {
		extended := hashHex(extendSalt + ":" + seed + ":" + strconv.Itoa(len(digits)) + ":" + string(digits))
		digits = collectDigits(extended, digits)
	}
	return string(digits[:CodeLength])
}

// IsWellFormed reports whether code is syntactically a valid token code:
// exactly 20 ASCII digits. A well-formed code is authoritative only if it
// also matches a stored, unexpired token in generated status.
func IsWellFormed(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

func hashHex(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}

func collectDigits(hexDigest string, digits []byte) []byte {
	for i := 0; i < len(hexDigest) && len(digits) < CodeLength; i++ {
		if hexDigest[i] >= '0' && hexDigest[i] <= '9' {
			digits = append(digits, hexDigest[i])
		}
	}
	return digits
}
