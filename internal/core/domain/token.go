package domain

import "github.com/golang-jwt/jwt/v5"

// Issuer is the fixed authority string carried in every token this system
// mints. Verifiers reject tokens from any other issuer.
const Issuer = "https://indicator-login-service.pollak.info"

// TableAccessClaim is one entry of the tableAccess list embedded in access
// tokens. Only tables available at mint time are included.
type TableAccessClaim struct {
	TableName   string         `json:"tableName"`
	Permissions TableAccessSet `json:"permissions"`
	IsAvailable bool           `json:"isAvailable"`
	Alias       string         `json:"alias,omitempty"`
}

// AccessTokenClaims is the wire format of the short-lived access token.
type AccessTokenClaims struct {
	Email       string             `json:"email"`
	Name        string             `json:"name"`
	Permissions PermissionSet      `json:"permissions"`
	School      *School            `json:"school,omitempty"`
	TableAccess []TableAccessClaim `json:"tableAccess"`
	jwt.RegisteredClaims
}

// RefreshTokenClaims carries minimal identity only; the login service
// re-resolves the user on refresh.
type RefreshTokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// TokenPair bundles a freshly minted access and refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}
