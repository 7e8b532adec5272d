package domain

// EventType names a committed ledger transition.
type EventType string

const (
	EventMinted          EventType = "minted"
	EventTransferred     EventType = "transferred"
	EventSlotOverwritten EventType = "slot_overwritten"
	EventBurned          EventType = "burned"
	EventRevoked         EventType = "revoked"
	EventRedeemed        EventType = "redeemed"
)

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventMinted, EventTransferred, EventSlotOverwritten, EventBurned, EventRevoked, EventRedeemed:
		return true
	}
	return false
}

// Event is one committed ledger transition. Seq is global and strictly
// increasing across all tokens. Events carry enough data to rebuild the
// ledger by replay.
type Event struct {
	Seq       uint64    `json:"seq"`
	Type      EventType `json:"type"`
	TokenID   uint64    `json:"token_id"`
	Timestamp int64     `json:"timestamp" table:"ms"`

	// From is the previous owner (transfer, burn, revoke, overwrite).
	From Address `json:"from"`
	// To is the new owner (mint, transfer).
	To Address `json:"to"`

	ApplicationID string  `json:"application_id"`
	AppHash       AppHash `json:"app_hash" table:"wide"`

	// Mint-only fields.
	MetadataRef string `json:"metadata_ref,omitempty" table:"wide"`
	ExpiresAt   int64  `json:"expires_at,omitempty" table:"wide,ms"`
	Soulbound   bool   `json:"soulbound,omitempty" table:"wide"`
	Ephemeral   bool   `json:"ephemeral,omitempty" table:"wide"`
}

// InvalidatesAccess reports whether credentials derived from the token
// must stop verifying once this event is processed.
func (e *Event) InvalidatesAccess() bool {
	switch e.Type {
	case EventTransferred, EventBurned, EventRevoked:
		return true
	}
	return false
}
