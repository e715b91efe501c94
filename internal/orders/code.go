package orders

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewCode builds the human-readable order code shown to the shopper,
// e.g. ORD20260831142455-9F3A. The timestamp gives operators a readable
// handle; the suffix closes the same-second collision window (the column
// still carries a unique index as the backstop).
func NewCode(t time.Time) string {
	suffix := strings.ToUpper(uuid.NewString()[:4])
	return fmt.Sprintf("ORD%s-%s", t.Format("20060102150405"), suffix)
}
