package domain

import "time"

// PushSubscription binds an iOS device token to a list. The triple
// (ListID, ClientFingerprint, DeviceToken) is the identity of a row.
type PushSubscription struct {
	ListID            string
	ClientFingerprint string
	DeviceToken       string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type PushSubscriptionRequest struct {
	DeviceToken string `json:"device_token" validate:"required,hexadecimal,max=200"`
}
