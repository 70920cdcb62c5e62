package jwt

import "github.com/golang-jwt/jwt"

// Payload is the identity carried by every device token.
type Payload struct {
	// StandardClaims carries expiry, issue time and issuer.
	jwt.StandardClaims `json:"standard_claims"`

	// ProfileID is the learner profile the device is bound to.
	ProfileID string `json:"profile_id"`

	// DeviceID is the client-generated install identifier presented at registration.
	DeviceID string `json:"device_id"`
}
