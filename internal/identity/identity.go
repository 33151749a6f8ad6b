package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/BearBump/StayScout/internal/models"
)

// ItemIdentity derives the stable identity hash of a listing from its
// normalized title, normalized location and source tag. Price and rating are
// deliberately excluded: a cheaper copy of the same listing is the same stay.
func ItemIdentity(c models.Candidate) string {
	s := normalize(c.Title) + "|" + normalize(c.Location) + "|" + c.Source
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// CriteriaIdentity hashes search criteria with the check-in/check-out dates
// zeroed out, so a rolling-date recurring search groups under one hash.
func CriteriaIdentity(c models.SearchCriteria) string {
	c.CheckIn = timeZero
	c.CheckOut = timeZero
	b, _ := json.Marshal(c)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

var timeZero = models.SearchCriteria{}.CheckIn

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
