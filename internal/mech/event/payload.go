package event

// DonationAddedPayload captures the payload for donation.added events.
type DonationAddedPayload struct {
	Donor       string `json:"donor"`
	AmountMinor int64  `json:"amount_minor"`
}

// DonationDeletedPayload captures the payload for donation.deleted events.
// Appending a second delete for the same target restores the original
// contribution; the active flag follows delete-count parity.
type DonationDeletedPayload struct {
	DeletedSeq uint64 `json:"deleted_seq"`
}

// GiftPowerGrantedPayload captures the payload for gift.power_granted events.
type GiftPowerGrantedPayload struct {
	CampaignID string `json:"campaign_id"`
	PowerMinor int64  `json:"power_minor"`
}

// SystemDonationAddedPayload captures the payload for system.donation_added events.
type SystemDonationAddedPayload struct {
	EventName  string `json:"event_name"`
	PowerMinor int64  `json:"power_minor"`
}

// ExactHitBonusGrantedPayload captures the payload for bonus.exact_hit events.
type ExactHitBonusGrantedPayload struct {
	FromLevel  int   `json:"from_level"`
	ToLevel    int   `json:"to_level"`
	PowerMinor int64 `json:"power_minor"`
}
