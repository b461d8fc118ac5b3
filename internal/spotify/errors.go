package spotify

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Failure taxonomy surfaced to callers. Everything else is wrapped as a
// plain error (network or unknown).
var (
	// ErrNoToken is returned when no access token is available.
	ErrNoToken = errors.New("no access token")

	// ErrAuthFailed is returned when a call still fails after the single
	// refresh-and-retry, or when the refresh itself fails.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrNoActiveDevice is returned when the player has no active device.
	ErrNoActiveDevice = errors.New("no active device")

	// ErrPremiumRequired is returned when the account lacks the premium
	// capability a playback command needs.
	ErrPremiumRequired = errors.New("premium subscription required")

	// ErrRestricted is returned for other forbidden playback commands.
	ErrRestricted = errors.New("playback command restricted")
)

// apiError is the Web API error envelope.
type apiError struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
		Reason  string `json:"reason"`
	} `json:"error"`
}

// premiumRequiredReason is the documented restriction reason for accounts
// without premium. Matching on it avoids sniffing free-form messages.
const premiumRequiredReason = "PREMIUM_REQUIRED"

// statusError maps a non-2xx player response to the failure taxonomy.
func statusError(status int, body []byte) error {
	var ae apiError
	_ = json.Unmarshal(body, &ae)

	switch {
	case status == 404:
		return ErrNoActiveDevice
	case status == 403 && ae.Error.Reason == premiumRequiredReason:
		return ErrPremiumRequired
	case status == 403:
		if ae.Error.Message != "" {
			return fmt.Errorf("%w: %s", ErrRestricted, ae.Error.Message)
		}
		return ErrRestricted
	default:
		if ae.Error.Message != "" {
			return fmt.Errorf("spotify api: status %d: %s", status, ae.Error.Message)
		}
		return fmt.Errorf("spotify api: status %d", status)
	}
}
