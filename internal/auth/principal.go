package auth

// Principal is the authenticated identity derived from an account for the
// access-control layer. Authorities are the account's role names, resolved
// eagerly when the principal is loaded.
type Principal struct {
	UserID       uint
	Email        string
	PasswordHash string
	Authorities  []string
}
