package domain

import "time"

// MaxItemsPerList caps the live (non-deleted) items of a single list.
const MaxItemsPerList = 500

type Item struct {
	ID                   int64
	ListID               string
	Ciphertext           []byte
	Nonce                []byte
	CreatedAt            time.Time
	UpdatedAt            time.Time
	Rev                  int64
	Deleted              bool
	UpdatedByFingerprint string
}

// ItemPage is the result of a sync read. LatestRev is nil when the list has
// never held an item.
type ItemPage struct {
	Items     []*Item
	LatestRev *int64
}

type ItemRequest struct {
	CiphertextB64 string `json:"ciphertext_b64" validate:"omitempty,base64"`
	NonceB64      string `json:"nonce_b64" validate:"omitempty,base64"`
}

type ItemResponse struct {
	ItemID        int64     `json:"item_id"`
	CiphertextB64 string    `json:"ciphertext_b64"`
	NonceB64      string    `json:"nonce_b64"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Rev           int64     `json:"rev"`
	Deleted       bool      `json:"deleted"`
}

type ItemsResponse struct {
	Items     []ItemResponse `json:"items"`
	LatestRev *int64         `json:"latest_rev"`
}

type ItemDeletedResponse struct {
	ItemID  int64 `json:"item_id"`
	Deleted bool  `json:"deleted"`
	Rev     int64 `json:"rev"`
}
