// Package identity centralizes user-identifier comparison and the
// role predicates shared by the trip and delivery flows.
//
// Backend responses are inconsistent about identifier types: the same user
// can show up as "42" on one endpoint and 42 on another. All comparisons
// therefore go through a normalized string form, never type-sensitive
// equality.
package identity

import (
	"fmt"
	"strings"

	"github.com/example/carpool/internal/models"
)

// Normalize renders any identifier value as its canonical string form.
func Normalize(id any) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case models.UserID:
		return strings.TrimSpace(string(v))
	case fmt.Stringer:
		return strings.TrimSpace(v.String())
	case float64:
		// JSON numbers decode as float64; identifiers are whole values.
		return fmt.Sprintf("%.0f", v)
	case float32:
		return fmt.Sprintf("%.0f", v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Same reports whether two identifiers refer to the same principal.
// Empty identifiers never match anything.
func Same(a, b any) bool {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb
}

// IsTripDriver reports whether the user drives the given trip, using the
// trip's driver id or, failing that, the flagged participant.
func IsTripDriver(userID any, trip *models.Trip) bool {
	if trip == nil {
		return false
	}
	if Same(userID, trip.DriverID) {
		return true
	}
	for _, p := range trip.Participants {
		if p.IsDriver && Same(userID, p.UserID) {
			return true
		}
	}
	return false
}

// IsOwner reports whether the user owns an entity keyed by ownerID.
func IsOwner(userID, ownerID any) bool {
	return Same(userID, ownerID)
}
