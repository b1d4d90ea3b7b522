package model

// Circle is a named set of user accounts used as an invite and
// membership target. Members holds user localparts without duplicates.
type Circle struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// HasMember reports whether the localpart is in the member set.
func (c *Circle) HasMember(localpart string) bool {
	for _, m := range c.Members {
		if m == localpart {
			return true
		}
	}
	return false
}
