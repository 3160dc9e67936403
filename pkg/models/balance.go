package models

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON encodes the balance as the producer's [total, unlocked]
// array form.
func (b Balance) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]uint64{b.Total, b.Unlocked})
}

// UnmarshalJSON accepts a [total, unlocked] array. Extra elements are
// ignored; fewer than two is an error.
func (b *Balance) UnmarshalJSON(data []byte) error {
	var parts []uint64
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("balance must be an array of integers: %w", err)
	}
	if len(parts) < 2 {
		return fmt.Errorf("balance must have at least 2 elements, got %d", len(parts))
	}
	b.Total = parts[0]
	b.Unlocked = parts[1]
	return nil
}
