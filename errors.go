package ssoflow

import (
	"errors"
	"fmt"
)

// ErrAuthorizationDenied reports that the user explicitly rejected the
// device authorization request. Re-prompting may succeed; retrying without
// user involvement will not.
var ErrAuthorizationDenied = errors.New("authorization denied by user")

// ErrAuthorizationExpired reports that the device code expired before the
// user approved the request. A fresh authentication attempt issues a new
// code.
var ErrAuthorizationExpired = errors.New("device authorization expired before approval")

// ConfigError reports missing or invalid SSO configuration.
type ConfigError struct {
	msg string
}

func (e *ConfigError) Error() string {
	return e.msg
}

// CacheError reports a failure reading or writing the on-disk cache.
// Cache failures are recovered internally: loads fall back to the network
// and store failures are logged, so flow operations never return one. The
// type exists so the recovery sites can label what they absorbed.
type CacheError struct {
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache: %s", e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

// RegistrationError reports a transport failure during OIDC client
// registration.
type RegistrationError struct {
	Err error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("client registration failed: %s", e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}

// DeviceAuthError reports a transport failure starting or polling the
// device authorization flow. Distinct from ErrAuthorizationDenied and
// ErrAuthorizationExpired, which are user- or time-caused outcomes.
type DeviceAuthError struct {
	Err error
}

func (e *DeviceAuthError) Error() string {
	return fmt.Sprintf("device authorization failed: %s", e.Err)
}

func (e *DeviceAuthError) Unwrap() error {
	return e.Err
}

// PromptError reports that the caller-supplied verification prompt failed.
// The flow aborts before polling: there is no point polling for an approval
// the user was never asked for.
type PromptError struct {
	Err error
}

func (e *PromptError) Error() string {
	return fmt.Sprintf("verification prompt failed: %s", e.Err)
}

func (e *PromptError) Unwrap() error {
	return e.Err
}

// ExchangeError reports a failure exchanging the access token for role
// credentials. TokenRejected distinguishes "the token was refused, a fresh
// sign-in may help" from "the account/role request itself is invalid".
type ExchangeError struct {
	Err           error
	TokenRejected bool
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("credential exchange failed: %s", e.Err)
}

func (e *ExchangeError) Unwrap() error {
	return e.Err
}
