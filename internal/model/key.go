package model

import "time"

// KeyRecord is one issued access key. The key string is the record's identity;
// HWID, Username and PlayerID never change after creation.
type KeyRecord struct {
	Key             string     `json:"key"`
	HWID            string     `json:"hwid"`
	Username        string     `json:"username"`
	PlayerID        string     `json:"player_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	ExpiresAt       time.Time  `json:"expires_at"`
	LastValidatedAt *time.Time `json:"last_validated_at,omitempty"`
	Used            bool       `json:"used"`
}

// LiveAt reports whether the record has not yet expired at now. A record whose
// expiry equals now is no longer live for reuse.
func (k *KeyRecord) LiveAt(now time.Time) bool {
	return k.ExpiresAt.After(now)
}

// ExpiredAt reports whether now is strictly past the record's expiry.
func (k *KeyRecord) ExpiredAt(now time.Time) bool {
	return now.After(k.ExpiresAt)
}

// KeyUpdate carries the mutable usage metadata written on a successful
// validation.
type KeyUpdate struct {
	LastValidatedAt time.Time
	Used            bool
}
