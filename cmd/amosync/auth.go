package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"amosync/pkg/auth"
	"amosync/pkg/config"
	"amosync/pkg/ui"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	authBackend         string
	authAccessKeyID     string
	authSecretAccessKey string
	authRegion          string
	authEndpoint        string
	authCredentialsFile string
	authGuideBackend    string
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage object store credentials",
	Long: `Manage stored object store credentials.

Credentials are kept in named profiles, stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read only)

A sync picks the profile named by --credentials, falling back to
"default", whenever the configuration carries no keys of its own.`,
}

var authSetCmd = &cobra.Command{
	Use:   "set [profile]",
	Short: "Store credentials under a profile",
	Example: `  # S3 keys; the secret is prompted for
  amosync auth set --backend s3 --access-key-id AKIA... --region eu-west-1

  # A GCS service account under its own profile
  amosync auth set archive --backend gcs --credentials-file key.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAuthSet,
}

var authShowCmd = &cobra.Command{
	Use:   "show [profile]",
	Short: "Show one profile with secrets masked",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuthShow,
}

var authListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored profiles",
	Args:  cobra.NoArgs,
	RunE:  runAuthList,
}

var authDeleteCmd = &cobra.Command{
	Use:   "delete <profile>",
	Short: "Remove a profile from every store",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthDelete,
}

var authGuideCmd = &cobra.Command{
	Use:   "guide",
	Short: "Explain where to find credentials for a backend",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		auth.ShowCredentialGuide(os.Stdout, authGuideBackend)
	},
}

func init() {
	f := authSetCmd.Flags()
	f.StringVar(&authBackend, "backend", config.BackendS3, "backend the credentials are for (s3, gcs)")
	f.StringVar(&authAccessKeyID, "access-key-id", "", "S3 access key id")
	f.StringVar(&authSecretAccessKey, "secret-access-key", "", "S3 secret access key (prompted when empty)")
	f.StringVar(&authRegion, "region", "", "S3 region")
	f.StringVar(&authEndpoint, "endpoint", "", "S3-compatible endpoint URL")
	f.StringVar(&authCredentialsFile, "credentials-file", "", "GCS service account key file")

	authGuideCmd.Flags().StringVar(&authGuideBackend, "backend", config.BackendS3, "backend to explain (s3, gcs, local)")

	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetCmd, authShowCmd, authListCmd, authDeleteCmd, authGuideCmd)
}

func profileArg(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return auth.DefaultProfile
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return err
	}

	cred := &auth.Credential{
		Profile:         profileArg(args),
		Backend:         authBackend,
		AccessKeyID:     authAccessKeyID,
		SecretAccessKey: authSecretAccessKey,
		Region:          authRegion,
		Endpoint:        authEndpoint,
		CredentialsFile: authCredentialsFile,
	}

	if cred.Backend == config.BackendS3 && cred.AccessKeyID != "" && cred.SecretAccessKey == "" {
		fmt.Print("Secret access key: ")
		secret, err := readPassword()
		if err != nil {
			return fmt.Errorf("read secret: %w", err)
		}
		cred.SecretAccessKey = secret
	}

	if err := manager.Store(cred); err != nil {
		if cred.Backend == config.BackendS3 || cred.Backend == config.BackendGCS {
			auth.ShowCredentialGuide(os.Stderr, cred.Backend)
		}
		return err
	}

	ui.PrintSuccess(os.Stdout, fmt.Sprintf("Stored %s credentials as profile %q", cred.Backend, cred.Profile))
	if auth.IsKeyringAvailable() {
		fmt.Println("  Stored in the system keychain")
	} else {
		fmt.Println("  Stored in the encrypted credentials file")
	}
	return nil
}

func runAuthShow(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return err
	}

	cred, err := manager.Retrieve(profileArg(args))
	if err != nil {
		return err
	}
	printCredential(auth.Sanitize(cred))
	return nil
}

func runAuthList(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return err
	}

	creds, err := manager.List()
	if err != nil {
		return err
	}
	if len(creds) == 0 {
		ui.PrintInfo(os.Stdout, "No stored profiles", "use 'amosync auth set' to add one")
		return nil
	}

	for _, cred := range creds {
		printCredential(auth.Sanitize(cred))
		fmt.Println()
	}
	return nil
}

func runAuthDelete(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager()
	if err != nil {
		return err
	}
	if err := manager.Delete(args[0]); err != nil {
		return err
	}
	ui.PrintSuccess(os.Stdout, "Profile removed: "+args[0])
	return nil
}

func printCredential(cred *auth.Credential) {
	ui.PrintInfo(os.Stdout, "Profile", cred.Profile)
	ui.PrintInfo(os.Stdout, "  Backend", cred.Backend)
	if cred.AccessKeyID != "" {
		ui.PrintInfo(os.Stdout, "  Access key", cred.AccessKeyID)
		ui.PrintInfo(os.Stdout, "  Secret key", cred.SecretAccessKey)
	}
	if cred.Region != "" {
		ui.PrintInfo(os.Stdout, "  Region", cred.Region)
	}
	if cred.Endpoint != "" {
		ui.PrintInfo(os.Stdout, "  Endpoint", cred.Endpoint)
	}
	if cred.CredentialsFile != "" {
		ui.PrintInfo(os.Stdout, "  Credentials file", cred.CredentialsFile)
	}
	if !cred.LastModified.IsZero() {
		ui.PrintInfo(os.Stdout, "  Last modified", cred.LastModified.Format("2006-01-02 15:04:05"))
	}
}

// readPassword reads a secret from stdin without echoing it
func readPassword() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return string(secret), nil
		}
	}

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}
