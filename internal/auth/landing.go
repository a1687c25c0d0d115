package auth

// Authority strings checked by the access layer. Identical to the stored role
// names.
const (
	AuthorityAdmin = "ROLE_ADMIN"
	AuthorityUser  = "ROLE_USER"
)

// Post-login destinations.
const (
	AdminLanding  = "/admin"
	UserLanding   = "/user"
	PublicLanding = "/"
)

// LandingPath picks the destination a freshly authenticated principal is sent
// to. ROLE_ADMIN wins over ROLE_USER when both are present. It is evaluated
// after credential verification only and never verifies anything itself.
func LandingPath(authorities []string) string {
	hasUser := false
	for _, a := range authorities {
		switch a {
		case AuthorityAdmin:
			return AdminLanding
		case AuthorityUser:
			hasUser = true
		}
	}
	if hasUser {
		return UserLanding
	}
	return PublicLanding
}
