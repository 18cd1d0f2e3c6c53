package domain

// Identity describes the authenticated viewer as supplied by the identity
// provider: an email and a display name. The zero value is the anonymous
// visitor.
type Identity struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Anonymous reports whether no authenticated identity is present.
func (i Identity) Anonymous() bool {
	return i.Email == ""
}

// Complete reports whether the provider supplied both email and name. An
// identity missing its display name is treated as incomplete.
func (i Identity) Complete() bool {
	return i.Email != "" && i.Name != ""
}
