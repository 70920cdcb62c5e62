package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	// DeviceIdentityExpiration is the lifetime of a device token. Devices re-register
	// silently with the same device id once it lapses.
	DeviceIdentityExpiration = 30 * 24 * time.Hour

	// TokenIssuer identifies the issuer of the token.
	TokenIssuer = "SpeechQuest-Server"
)

var (
	ErrTokenExpired   = errors.New("device token expired")
	ErrTokenMalformed = errors.New("device token malformed")
	ErrTokenInvalid   = errors.New("device token invalid")
)

// GenerateToken signs payload with HS256. The profile id doubles as the subject.
func GenerateToken(payload *Payload, secretKey string, duration time.Duration) (string, error) {
	if payload.ProfileID == "" {
		return "", fmt.Errorf("%w: no profile", ErrTokenInvalid)
	}

	now := time.Now()
	payload.StandardClaims = jwt.StandardClaims{
		ExpiresAt: now.Add(duration).Unix(),
		IssuedAt:  now.Unix(),
		Issuer:    TokenIssuer,
		Subject:   payload.ProfileID,
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, payload).SignedString([]byte(secretKey))
}

// ParseToken validates tokenString and returns its payload. Failures wrap one of
// ErrTokenExpired, ErrTokenMalformed or ErrTokenInvalid.
func ParseToken(tokenString string, secretKey string) (*Payload, error) {
	claims := &Payload{}

	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secretKey), nil
	})
	if err != nil {
		return nil, classify(err)
	}

	switch {
	case claims.Issuer != TokenIssuer:
		return nil, fmt.Errorf("%w: issuer %q", ErrTokenInvalid, claims.Issuer)
	case claims.ProfileID == "" || claims.Subject != claims.ProfileID:
		return nil, fmt.Errorf("%w: profile does not match subject", ErrTokenInvalid)
	}

	return claims, nil
}

func classify(err error) error {
	var ve *jwt.ValidationError
	if errors.As(err, &ve) {
		switch {
		case ve.Errors&jwt.ValidationErrorExpired != 0:
			return fmt.Errorf("%w: %v", ErrTokenExpired, err)
		case ve.Errors&jwt.ValidationErrorMalformed != 0:
			return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
}
