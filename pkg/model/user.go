package model

import "encoding/json"

// User is one account in the chat service directory.
// The localpart is the unique, immutable identifier.
type User struct {
	Localpart string `json:"localpart"`
	Nickname  string `json:"nickname,omitempty"`
}

// DebugInfo is an opaque diagnostic record for one account,
// passed through from the backend unmodified.
type DebugInfo = json.RawMessage

// AccessModel is the visibility policy for a profile facet.
type AccessModel string

const (
	AccessWhitelist AccessModel = "whitelist"
	AccessPresence  AccessModel = "presence"
	AccessOpen      AccessModel = "open"
)

// ValidAccessModel reports whether m is one of the known policies.
func ValidAccessModel(m AccessModel) bool {
	switch m {
	case AccessWhitelist, AccessPresence, AccessOpen:
		return true
	}
	return false
}

// Facet names an independently protected part of a user profile.
type Facet string

const (
	FacetNickname Facet = "nickname"
	FacetAvatar   Facet = "avatar"
	FacetVCard    Facet = "vcard"
)

// ProfileFacets lists all facets in guess-priority order.
var ProfileFacets = []Facet{FacetNickname, FacetAvatar, FacetVCard}
