package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLandingPath(t *testing.T) {
	tests := []struct {
		name        string
		authorities []string
		want        string
	}{
		{name: "admin only", authorities: []string{AuthorityAdmin}, want: AdminLanding},
		{name: "user only", authorities: []string{AuthorityUser}, want: UserLanding},
		{name: "admin wins over user", authorities: []string{AuthorityUser, AuthorityAdmin}, want: AdminLanding},
		{name: "no authorities", authorities: nil, want: PublicLanding},
		{name: "unknown authority", authorities: []string{"ROLE_AUDITOR"}, want: PublicLanding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LandingPath(tt.authorities))
		})
	}
}
