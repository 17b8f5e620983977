package ssoflow

import (
	"context"
	"fmt"
	"os"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
)

const (
	awsConfigFileEnv = "AWS_CONFIG_FILE"
	awsProfileEnv    = "AWS_PROFILE"
	defaultProfile   = "default"
)

// ProfileSource loads SSO configuration from a profile in AWS shared config.
//
// The zero value resolves the config file from AWS_CONFIG_FILE (falling back
// to ~/.aws/config) and the profile from AWS_PROFILE (falling back to
// "default"), matching the conventions of other AWS tooling. Both can be
// overridden explicitly.
type ProfileSource struct {
	// ConfigFile is the path of the shared config file. Empty means resolve
	// from the environment.
	ConfigFile string

	// Profile is the profile name. Empty means resolve from the environment.
	Profile string
}

// WithConfigFile returns a copy of the source reading the given config file.
func (s ProfileSource) WithConfigFile(path string) ProfileSource {
	s.ConfigFile = path
	return s
}

// WithProfile returns a copy of the source reading the given profile.
func (s ProfileSource) WithProfile(name string) ProfileSource {
	s.Profile = name
	return s
}

// LoadConfig reads the profile and extracts its SSO settings. Both the
// legacy inline sso_* keys and the newer sso-session sections are supported.
func (s ProfileSource) LoadConfig(ctx context.Context) (Config, error) {
	path := s.ConfigFile
	if path == "" {
		if env := os.Getenv(awsConfigFileEnv); env != "" {
			path = env
		} else {
			path = awsconfig.DefaultSharedConfigFilename()
		}
	}

	profile := s.Profile
	if profile == "" {
		if env := os.Getenv(awsProfileEnv); env != "" {
			profile = env
		} else {
			profile = defaultProfile
		}
	}

	shared, err := awsconfig.LoadSharedConfigProfile(ctx, profile, func(o *awsconfig.LoadSharedConfigOptions) {
		o.ConfigFiles = []string{path}
		o.CredentialsFiles = []string{}
	})
	if err != nil {
		return Config{}, &ConfigError{msg: fmt.Sprintf("unable to load profile %q from config file %s: %s", profile, path, err)}
	}

	cfg := Config{
		Region:    shared.SSORegion,
		StartURL:  shared.SSOStartURL,
		AccountID: shared.SSOAccountID,
		RoleName:  shared.SSORoleName,
	}
	if session := shared.SSOSession; session != nil {
		if session.SSORegion != "" {
			cfg.Region = session.SSORegion
		}
		if session.SSOStartURL != "" {
			cfg.StartURL = session.SSOStartURL
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, &ConfigError{msg: fmt.Sprintf("profile %q in config file %s: %s", profile, path, err)}
	}
	return cfg, nil
}
