package schema

import (
	"crypto/rand"
	"math/big"
	"time"
)

// Object is implemented once per concrete entity type.
type Object interface {
	// TypeName returns the registered schema name for the entity.
	TypeName() string
	// Base exposes the identifiable fields every entity shares.
	Base() *Identifiable
}

// Identifiable holds the fields common to every metadata object.
type Identifiable struct {
	UID             string
	Code            string
	Name            string
	Created         time.Time
	LastUpdated     time.Time
	CreatedBy       string
	Sharing         Sharing
	Translations    []Translation
	Favorites       []string
	Subscribers     []string
	AttributeValues []AttributeValue

	// Href and Access are computed per response and never stored.
	Href   string
	Access *Access
}

// Base lets concrete types satisfy Object by embedding Identifiable.
func (i *Identifiable) Base() *Identifiable {
	return i
}

// IsFavorite reports whether username has favorited the object.
func (i *Identifiable) IsFavorite(username string) bool {
	return contains(i.Favorites, username)
}

// SetAsFavorite adds username to the favorites set. It returns false if it
// was already present.
func (i *Identifiable) SetAsFavorite(username string) bool {
	if contains(i.Favorites, username) {
		return false
	}
	i.Favorites = append(i.Favorites, username)
	return true
}

// RemoveAsFavorite removes username from the favorites set.
func (i *Identifiable) RemoveAsFavorite(username string) bool {
	var removed bool
	i.Favorites, removed = without(i.Favorites, username)
	return removed
}

func (i *Identifiable) IsSubscribed(username string) bool {
	return contains(i.Subscribers, username)
}

func (i *Identifiable) Subscribe(username string) bool {
	if contains(i.Subscribers, username) {
		return false
	}
	i.Subscribers = append(i.Subscribers, username)
	return true
}

func (i *Identifiable) Unsubscribe(username string) bool {
	var removed bool
	i.Subscribers, removed = without(i.Subscribers, username)
	return removed
}

func contains(values []string, v string) bool {
	for _, existing := range values {
		if existing == v {
			return true
		}
	}
	return false
}

func without(values []string, v string) ([]string, bool) {
	out := values[:0]
	removed := false
	for _, existing := range values {
		if existing == v {
			removed = true
			continue
		}
		out = append(out, existing)
	}
	return out, removed
}

// Translation is a localized value for one property.
type Translation struct {
	Locale   string `json:"locale"`
	Property string `json:"property"`
	Value    string `json:"value"`
}

// AttributeValue is a custom attribute attached to an object.
type AttributeValue struct {
	Attribute string `json:"attribute"`
	Value     string `json:"value"`
}

const (
	uidLength    = 11
	letters      = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	alphanumeric = letters + "0123456789"
)

// GenerateUID returns a new 11 character identifier starting with a letter.
func GenerateUID() string {
	buf := make([]byte, uidLength)
	buf[0] = letters[randomIndex(len(letters))]
	for i := 1; i < uidLength; i++ {
		buf[i] = alphanumeric[randomIndex(len(alphanumeric))]
	}
	return string(buf)
}

func randomIndex(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		panic(err)
	}
	return int(v.Int64())
}

// IsValidUID checks the identifier format.
func IsValidUID(uid string) bool {
	if len(uid) != uidLength {
		return false
	}
	for i := 0; i < len(uid); i++ {
		c := uid[i]
		isLetter := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
		if i == 0 && !isLetter {
			return false
		}
		if !isLetter && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
