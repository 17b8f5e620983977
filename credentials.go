package ssoflow

import (
	"fmt"
	"time"

	"github.com/connec/aws-sso-flow/internal/oidc"
)

// SessionCredentials are short-lived AWS credentials obtained through SSO.
//
// The secret access key and session token are sensitive; String and Format
// redact them so the value can be logged safely.
type SessionCredentials struct {
	// AccessKeyID is the access key ID.
	AccessKeyID string

	// SecretAccessKey is the secret access key.
	SecretAccessKey string

	// SessionToken is the session token.
	SessionToken string

	// ExpiresAt is when the credentials expire.
	ExpiresAt time.Time
}

// String renders the credentials with the secret fields redacted.
func (c SessionCredentials) String() string {
	return fmt.Sprintf("SessionCredentials{AccessKeyID: %s, SecretAccessKey: REDACTED, SessionToken: REDACTED, ExpiresAt: %s}",
		c.AccessKeyID, c.ExpiresAt.Format(time.RFC3339))
}

// Expired reports whether the credentials have passed their expiry.
func (c SessionCredentials) Expired() bool {
	return !time.Now().Before(c.ExpiresAt)
}

func sessionCredentialsFromRole(rc oidc.RoleCredentials) SessionCredentials {
	return SessionCredentials{
		AccessKeyID:     rc.AccessKeyID,
		SecretAccessKey: rc.SecretAccessKey,
		SessionToken:    rc.SessionToken,
		ExpiresAt:       rc.ExpiresAt,
	}
}
