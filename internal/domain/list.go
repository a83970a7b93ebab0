package domain

import "time"

type List struct {
	ID               string
	OwnerFingerprint string
	MetaCiphertext   []byte
	MetaNonce        []byte
	CreatedAt        time.Time
}

type CreateListRequest struct {
	ListID            string `json:"list_id" validate:"required,max=128"`
	MetaCiphertextB64 string `json:"meta_ciphertext_b64" validate:"omitempty,base64"`
	MetaNonceB64      string `json:"meta_nonce_b64" validate:"omitempty,base64"`
}

type ListResponse struct {
	ListID            string    `json:"list_id"`
	MetaCiphertextB64 string    `json:"meta_ciphertext_b64"`
	MetaNonceB64      string    `json:"meta_nonce_b64"`
	CreatedAt         time.Time `json:"created_at"`
}

type ListDeletedResponse struct {
	ListID  string `json:"list_id"`
	Deleted bool   `json:"deleted"`
}
