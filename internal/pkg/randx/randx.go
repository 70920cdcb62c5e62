/*
Package randx generates cryptographically secure identifiers.

Profiles get a Base62 call sign, sessions and archive objects get UUIDs, and
device ids presented by clients are validated here.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set.
	Base62Len = int64(len(Base62Chars))

	// CallSignPrefix starts every generated profile nickname.
	CallSignPrefix = "Cadet_"

	// CallSignRawLength is the number of random characters after the prefix.
	CallSignRawLength = 6

	// DeviceIDMinLength and DeviceIDMaxLength bound client-supplied device ids.
	DeviceIDMinLength = 8
	DeviceIDMaxLength = 128
)

// Base62 returns n random Base62 characters.
func Base62(n int) (string, error) {
	result := make([]byte, n)

	for i := 0; i < n; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random number: %w", err)
		}
		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// CallSign generates a profile nickname such as "Cadet_a8ZQ2k".
func CallSign() (string, error) {
	raw, err := Base62(CallSignRawLength)
	if err != nil {
		return "", err
	}
	return CallSignPrefix + raw, nil
}

// ProfileID generates a new profile identifier.
func ProfileID() string {
	return uuid.New().String()
}

// SessionID generates a recording session identifier.
func SessionID() string {
	return uuid.New().String()
}

// IsValidDeviceID accepts install ids made of letters, digits, '-' and '_'.
func IsValidDeviceID(id string) bool {
	if len(id) < DeviceIDMinLength || len(id) > DeviceIDMaxLength {
		return false
	}

	for _, c := range id {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '-', c == '_':
		default:
			return false
		}
	}

	return true
}
