/*
Package errs provides custom error types and application-level error code constants.

These codes identify business and system errors both inside the server and in the
JSON envelope returned to the mobile client.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON is malformed.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates extra content after the JSON document.
	ErrExtraContentInBody = 1004

	// ErrFormParseFailed indicates failure to parse multipart or URL-encoded form data.
	ErrFormParseFailed = 1005

	// ErrRequestEntityTooLarge indicates that the request body exceeded the server limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Shop and Avatar Errors
const (
	// ErrItemNotFound indicates an unknown cosmetic item id.
	ErrItemNotFound = 2101

	// ErrItemAlreadyPurchased indicates the item is already owned; the balance is untouched.
	ErrItemAlreadyPurchased = 2102

	// ErrInsufficientPoints indicates the balance does not cover the price. The message
	// template takes the shortfall and the item name.
	ErrInsufficientPoints = 2103

	// ErrItemNotOwned indicates an equip request for an item that was never purchased.
	ErrItemNotOwned = 2104
)

// 3xxx: Profile, Session, and Security Errors
const (
	// ErrPowChallengeRequired indicates the client must complete a Proof-of-Work challenge first.
	ErrPowChallengeRequired = 3001

	// ErrPowChallengeInvalid indicates that the PoW proof is invalid.
	ErrPowChallengeInvalid = 3002

	// ErrSessionKicked indicates the live session was replaced by a newer connection.
	ErrSessionKicked = 3004

	// ErrUnauthorized indicates a missing or invalid identity token.
	ErrUnauthorized = 3005

	// ErrProfileNotFound indicates the token refers to an unknown profile.
	ErrProfileNotFound = 3006
)

// 4xxx: Recording and Speech Errors
const (
	// ErrPermissionDenied indicates microphone access was refused on the device.
	ErrPermissionDenied = 4001

	// ErrRecordingUnavailable indicates the capture produced no audio artifact.
	ErrRecordingUnavailable = 4002

	// ErrRecordingInProgress indicates a recording is already running for this session.
	ErrRecordingInProgress = 4003

	// ErrInvalidSessionState indicates the requested step is not allowed in the current state.
	ErrInvalidSessionState = 4004

	// ErrSpeechServiceFailed covers non-2xx responses and transport failures of the speech service.
	ErrSpeechServiceFailed = 4005

	// ErrSpeechMalformedResponse indicates an unexpected response shape from the speech service.
	ErrSpeechMalformedResponse = 4006

	// ErrUnsupportedAudio indicates the uploaded file is not an accepted audio format.
	ErrUnsupportedAudio = 4007

	// ErrPlanetNotFound indicates an unknown mission planet.
	ErrPlanetNotFound = 4008

	// ErrMissionNotReady indicates a completion request without an analyzed attempt.
	ErrMissionNotReady = 4009
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrFileStorageFailed indicates object storage did not accept or serve a file.
	ErrFileStorageFailed = 5001
)
