package gateway

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const referencePrefix = "ac"

// NewReference builds the merchant reference sent with a charge. The academy
// id is embedded so a webhook can be routed to the tenant's signing secret
// before the payload is trusted.
func NewReference(academyID uint) string {
	return fmt.Sprintf("%s%d_%s", referencePrefix, academyID, strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// ReferenceAcademyID extracts the academy id from a reference built by
// NewReference. Unknown formats yield 0.
func ReferenceAcademyID(ref string) uint {
	ref = strings.TrimSpace(ref)
	if !strings.HasPrefix(ref, referencePrefix) {
		return 0
	}
	head, _, ok := strings.Cut(ref[len(referencePrefix):], "_")
	if !ok {
		return 0
	}
	id, err := strconv.ParseUint(head, 10, 64)
	if err != nil {
		return 0
	}
	return uint(id)
}
