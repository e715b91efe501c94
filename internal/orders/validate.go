package orders

import "strings"

// ValidateItems normalizes the raw line items from a checkout payload.
// Pure: no store access, no side effects.
func ValidateItems(raw []OrderItem) ([]ItemIntent, error) {
	if len(raw) == 0 {
		return nil, ErrNoItems
	}
	out := make([]ItemIntent, 0, len(raw))
	for i, it := range raw {
		pid := strings.TrimSpace(it.ProductID)
		size := strings.TrimSpace(it.Size)
		switch {
		case pid == "":
			return nil, &LineItemError{Index: i, Reason: "missing product reference"}
		case size == "":
			return nil, &LineItemError{Index: i, Reason: "missing size"}
		case it.Quantity <= 0:
			return nil, &LineItemError{Index: i, Reason: "quantity must be positive"}
		}
		out = append(out, ItemIntent{ProductID: pid, Size: size, Quantity: it.Quantity})
	}
	return out, nil
}
