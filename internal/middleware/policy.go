package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"accpanel/internal/auth"
)

// Rule maps a URL path prefix to the authorities allowed through it. Exactly
// one of Authorities, Public or Authenticated applies.
type Rule struct {
	Prefix string
	// Authorities the principal needs at least one of.
	Authorities []string
	// Public allows the request without authentication.
	Public bool
	// Authenticated allows any authenticated principal.
	Authenticated bool
}

// Policy is a static ordered rule list, first match wins, evaluated before any
// handler. Requests matching no rule are rejected, never silently routed.
type Policy struct {
	rules []Rule
}

// NewPolicy builds a policy from an ordered rule list.
func NewPolicy(rules ...Rule) *Policy {
	return &Policy{rules: rules}
}

// DefaultPolicy mirrors the panel's access layout: the admin area requires
// ROLE_ADMIN, the user area ROLE_USER or ROLE_ADMIN, login and operational
// endpoints are public, everything else requires authentication.
func DefaultPolicy() *Policy {
	return NewPolicy(
		Rule{Prefix: "/api/admin", Authorities: []string{auth.AuthorityAdmin}},
		Rule{Prefix: "/api/user", Authorities: []string{auth.AuthorityUser, auth.AuthorityAdmin}},
		Rule{Prefix: "/api/auth", Public: true},
		Rule{Prefix: "/healthz", Public: true},
		Rule{Prefix: "/metrics", Public: true},
		Rule{Prefix: "/swagger", Public: true},
		Rule{Prefix: "/", Authenticated: true},
	)
}

func (p *Policy) match(path string) *Rule {
	for i := range p.rules {
		if strings.HasPrefix(path, p.rules[i].Prefix) {
			return &p.rules[i]
		}
	}
	return nil
}

// Skip reports whether token parsing can be skipped for the request. Wired
// into the JWT middleware's Skipper so public endpoints stay token-free.
func (p *Policy) Skip(c echo.Context) bool {
	rule := p.match(c.Request().URL.Path)
	return rule != nil && rule.Public
}

// Enforce authorises the request against the first matching rule using the
// authority set carried in the session token claims. It never re-queries the
// directory.
func (p *Policy) Enforce() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rule := p.match(c.Request().URL.Path)
			if rule == nil {
				return echo.NewHTTPError(http.StatusForbidden, "no access rule for path")
			}
			if rule.Public {
				return next(c)
			}

			claims := ClaimsFrom(c)
			if claims == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if rule.Authenticated {
				return next(c)
			}
			for _, need := range rule.Authorities {
				for _, have := range claims.Authorities {
					if need == have {
						return next(c)
					}
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "insufficient authority")
		}
	}
}

// ClaimsFrom extracts the session claims stored by the JWT middleware, or nil
// if the request carries no valid token.
func ClaimsFrom(c echo.Context) *auth.Claims {
	token, ok := c.Get("user").(*jwt.Token)
	if !ok || token == nil {
		return nil
	}
	claims, ok := token.Claims.(*auth.Claims)
	if !ok {
		return nil
	}
	return claims
}
