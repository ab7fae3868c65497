// Package auth mints and verifies the HS256 access tokens that identify
// resellers, shopkeepers, customers and admins.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/angelmondragon/promoredeem/pkg/enums"
)

var ErrInvalidClaims = errors.New("invalid access token claims")

// AccessTokenPayload is the caller-supplied part of a token.
type AccessTokenPayload struct {
	UserID int64
	Role   enums.MemberRole
	JTI    string
}

type AccessTokenClaims struct {
	UserID int64            `json:"user_id"`
	Role   enums.MemberRole `json:"role"`
	jwt.RegisteredClaims
}

// Validate is called by the jwt parser after the registered claims pass.
func (c AccessTokenClaims) Validate() error {
	if c.UserID <= 0 {
		return fmt.Errorf("%w: user id must be positive", ErrInvalidClaims)
	}
	if !c.Role.IsValid() {
		return fmt.Errorf("%w: unknown role %q", ErrInvalidClaims, c.Role)
	}
	return nil
}
