package event

import (
	"encoding/json"
	"fmt"
)

// EncodePayload marshals a typed payload for storage in PayloadJSON.
func EncodePayload(payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}
	return data, nil
}

// DecodePayload unmarshals PayloadJSON into a typed payload.
func DecodePayload(evt Event, target any) error {
	if len(evt.PayloadJSON) == 0 {
		return fmt.Errorf("event %d has no payload", evt.Seq)
	}
	if err := json.Unmarshal(evt.PayloadJSON, target); err != nil {
		return fmt.Errorf("decode %s payload (seq %d): %w", evt.Type, evt.Seq, err)
	}
	return nil
}

// Contribution returns the minor-unit amount a monetary event contributes
// to power and to the all-time total. Non-monetary and undecodable events
// contribute zero.
func Contribution(evt Event) (int64, error) {
	switch evt.Type {
	case TypeDonationAdded:
		var p DonationAddedPayload
		if err := DecodePayload(evt, &p); err != nil {
			return 0, err
		}
		return p.AmountMinor, nil
	case TypeGiftPowerGranted:
		var p GiftPowerGrantedPayload
		if err := DecodePayload(evt, &p); err != nil {
			return 0, err
		}
		return p.PowerMinor, nil
	case TypeSystemDonationAdded:
		var p SystemDonationAddedPayload
		if err := DecodePayload(evt, &p); err != nil {
			return 0, err
		}
		return p.PowerMinor, nil
	case TypeExactHitBonusGranted:
		var p ExactHitBonusGrantedPayload
		if err := DecodePayload(evt, &p); err != nil {
			return 0, err
		}
		return p.PowerMinor, nil
	}
	return 0, nil
}

// DeleteTarget returns the target sequence of a donation.deleted event.
func DeleteTarget(evt Event) (uint64, error) {
	if evt.Type != TypeDonationDeleted {
		return 0, fmt.Errorf("event %d is not a delete event", evt.Seq)
	}
	var p DonationDeletedPayload
	if err := DecodePayload(evt, &p); err != nil {
		return 0, err
	}
	return p.DeletedSeq, nil
}
