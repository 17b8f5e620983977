package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	ssoflow "github.com/connec/aws-sso-flow"
	"github.com/connec/aws-sso-flow/pkg/logging"
)

var (
	flagProfile    string
	flagConfigFile string
	flagStartURL   string
	flagRegion     string
	flagAccountID  string
	flagRoleName   string
	flagScopes     []string
	flagCacheDir   string
	flagNoCache    bool
	flagOutput     string
	flagTimeout    time.Duration
	flagVerbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "sso-login",
	Short: "Obtain AWS session credentials via SSO",
	Long: `sso-login signs in to AWS SSO using the device authorization flow and
prints short-lived session credentials.

By default SSO configuration is read from AWS shared config (the profile
named by AWS_PROFILE, in the file named by AWS_CONFIG_FILE). A profile can
be selected with --profile, or the configuration supplied entirely on the
command line with --start-url, --region, --account-id and --role-name.

Access tokens are cached on disk, so a recent sign-in (by this command or
by a program using the aws-sso-flow library) is reused without prompting.

Examples:
  sso-login                          # default profile, shell export output
  sso-login --profile staging        # named profile
  sso-login --output json            # credential_process-compatible JSON
  eval "$(sso-login)"                # put credentials in the environment`,
	SilenceUsage: true,
	RunE:         runLogin,
}

func init() {
	rootCmd.Flags().StringVar(&flagProfile, "profile", "", "AWS shared config profile to read SSO settings from")
	rootCmd.Flags().StringVar(&flagConfigFile, "config-file", "", "path of the AWS shared config file")
	rootCmd.Flags().StringVar(&flagStartURL, "start-url", "", "SSO start URL (with --region, --account-id and --role-name)")
	rootCmd.Flags().StringVar(&flagRegion, "region", "", "region the SSO instance runs in")
	rootCmd.Flags().StringVar(&flagAccountID, "account-id", "", "AWS account to sign in to")
	rootCmd.Flags().StringVar(&flagRoleName, "role-name", "", "IAM role to assume in the account")
	rootCmd.Flags().StringSliceVar(&flagScopes, "scope", nil, "OIDC scope to request during client registration (repeatable)")
	rootCmd.Flags().StringVar(&flagCacheDir, "cache-dir", "", "override the token cache directory")
	rootCmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "disable the on-disk token cache")
	rootCmd.Flags().StringVar(&flagOutput, "output", "env", "output format: env or json")
	rootCmd.Flags().DurationVar(&flagTimeout, "timeout", 15*time.Minute, "overall timeout; device flows wait for out-of-band human action")
	rootCmd.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
}

func runLogin(cmd *cobra.Command, args []string) error {
	level := logging.LevelWarn
	if flagVerbose {
		level = logging.LevelDebug
	}
	logging.Init(level, os.Stderr)

	ctx, cancel := context.WithTimeout(cmd.Context(), flagTimeout)
	defer cancel()

	source, err := configSource()
	if err != nil {
		return err
	}

	opts := []ssoflow.Option{ssoflow.WithLogger(logging.Logger())}
	if flagNoCache {
		opts = append(opts, ssoflow.WithCacheDir(""))
	} else if flagCacheDir != "" {
		opts = append(opts, ssoflow.WithCacheDir(flagCacheDir))
	}

	// The spinner runs while we wait for the user to approve in their
	// browser; credential output goes to stdout, everything else to stderr.
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))

	prompt := func(ctx context.Context, url string) error {
		fmt.Fprintf(os.Stderr, "Go to %s to sign in with SSO\n", url)
		s.Suffix = " Waiting for sign-in..."
		s.Start()
		return nil
	}

	flow, err := ssoflow.New(ctx, source, prompt, opts...)
	if err != nil {
		return err
	}

	credentials, err := flow.Credentials(ctx)
	s.Stop()
	if err != nil {
		return err
	}

	logging.Debug("Login", "obtained credentials valid until %s", credentials.ExpiresAt.Format(time.RFC3339))
	return printCredentials(credentials)
}

// configSource picks between explicit command-line configuration and AWS
// shared config. Mixing the two is rejected rather than guessed at.
func configSource() (ssoflow.ConfigSource, error) {
	explicit := flagStartURL != "" || flagRegion != "" || flagAccountID != "" || flagRoleName != ""
	if explicit {
		if flagProfile != "" || flagConfigFile != "" {
			return nil, fmt.Errorf("--start-url/--region/--account-id/--role-name cannot be combined with --profile/--config-file")
		}
		return ssoflow.Config{
			Region:    flagRegion,
			StartURL:  flagStartURL,
			AccountID: flagAccountID,
			RoleName:  flagRoleName,
			Scopes:    flagScopes,
		}, nil
	}

	source := ssoflow.ProfileSource{}
	if flagConfigFile != "" {
		source = source.WithConfigFile(flagConfigFile)
	}
	if flagProfile != "" {
		source = source.WithProfile(flagProfile)
	}
	return source, nil
}

func printCredentials(credentials ssoflow.SessionCredentials) error {
	switch flagOutput {
	case "env":
		fmt.Printf("export AWS_ACCESS_KEY_ID=%s\n", credentials.AccessKeyID)
		fmt.Printf("export AWS_SECRET_ACCESS_KEY=%s\n", credentials.SecretAccessKey)
		fmt.Printf("export AWS_SESSION_TOKEN=%s\n", credentials.SessionToken)
		return nil
	case "json":
		// The shape expected by the AWS CLI's credential_process setting.
		out := struct {
			Version         int    `json:"Version"`
			AccessKeyID     string `json:"AccessKeyId"`
			SecretAccessKey string `json:"SecretAccessKey"`
			SessionToken    string `json:"SessionToken"`
			Expiration      string `json:"Expiration"`
		}{
			Version:         1,
			AccessKeyID:     credentials.AccessKeyID,
			SecretAccessKey: credentials.SecretAccessKey,
			SessionToken:    credentials.SessionToken,
			Expiration:      credentials.ExpiresAt.Format(time.RFC3339),
		}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(out)
	default:
		return fmt.Errorf("unknown output format %q (expected env or json)", flagOutput)
	}
}
