package models

import "time"

type Platform string

const (
	PlatformInstagram Platform = "instagram"
	PlatformFacebook  Platform = "facebook"
)

type IntegrationStatus string

const (
	IntegrationConnected    IntegrationStatus = "connected"
	IntegrationDisconnected IntegrationStatus = "disconnected"
	IntegrationExpired      IntegrationStatus = "expired"
)

// Integration is a stored credential granting access to a connected
// social-platform account for a business.
type Integration struct {
	ID          string            `json:"id"`
	BusinessID  string            `json:"business_id"`
	Platform    Platform          `json:"platform"`
	AccountID   string            `json:"account_id"`
	AccessToken string            `json:"-"`
	Status      IntegrationStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
}

// Usable reports whether the integration can be used for API calls.
func (i *Integration) Usable() bool {
	return i.Status == IntegrationConnected && i.AccessToken != "" && i.AccountID != ""
}

// PlatformForChannel maps a thread channel to the platform whose content
// should back enrichment. Internal threads have no preferred platform.
func PlatformForChannel(c Channel) (Platform, bool) {
	switch c {
	case ChannelInstagram:
		return PlatformInstagram, true
	case ChannelFacebook:
		return PlatformFacebook, true
	default:
		return "", false
	}
}
