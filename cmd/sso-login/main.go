// Command sso-login obtains AWS session credentials via SSO device
// authorization and prints them for use by shells and other tools.
//
// Tokens obtained along the way are cached in the shared cache directory,
// so repeated invocations (and library users sharing the cache) do not
// re-prompt until the cached token expires.
package main

import (
	"errors"
	"os"

	ssoflow "github.com/connec/aws-sso-flow"
)

// Exit codes. Denied and expired authorizations are distinguished from
// transport failures so scripts can decide whether to re-prompt the user.
const (
	exitSuccess = 0
	exitError   = 1
	exitDenied  = 2
	exitExpired = 3
)

func main() {
	err := rootCmd.Execute()
	if err == nil {
		os.Exit(exitSuccess)
	}

	switch {
	case errors.Is(err, ssoflow.ErrAuthorizationDenied):
		os.Exit(exitDenied)
	case errors.Is(err, ssoflow.ErrAuthorizationExpired):
		os.Exit(exitExpired)
	default:
		os.Exit(exitError)
	}
}
