package models

// Principal is the authenticated caller of an API request.
type Principal struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
	// Admin is set from the identity token's admin claim or the caller's user row.
	Admin bool `json:"admin"`
}

// IdentityAccount is an account held by the external identity provider.
type IdentityAccount struct {
	UID   string `json:"uid"`
	Email string `json:"email"`
}
