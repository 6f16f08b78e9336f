// Package auth stores object-store credentials outside the config file:
// in the system keychain, an encrypted file, or the environment.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"amosync/pkg/config"
)

// DefaultProfile is used when no profile name is given
const DefaultProfile = "default"

// Credential is one named set of object-store credentials
type Credential struct {
	Profile         string    `json:"profile"`
	Backend         string    `json:"backend"`
	AccessKeyID     string    `json:"access_key_id,omitempty"`
	SecretAccessKey string    `json:"secret_access_key,omitempty"`
	Region          string    `json:"region,omitempty"`
	Endpoint        string    `json:"endpoint,omitempty"`
	CredentialsFile string    `json:"credentials_file,omitempty"`
	LastModified    time.Time `json:"last_modified"`
}

// Validate checks the fields each backend needs
func (c *Credential) Validate() error {
	if c == nil || c.Profile == "" {
		return errors.New("profile is required")
	}
	switch c.Backend {
	case config.BackendS3:
		if c.AccessKeyID == "" || c.SecretAccessKey == "" {
			return errors.New("access key id and secret access key are required for s3")
		}
	case config.BackendGCS:
		if c.CredentialsFile == "" {
			return errors.New("credentials file is required for gcs")
		}
	default:
		return fmt.Errorf("unsupported backend %q", c.Backend)
	}
	return nil
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	Store(cred *Credential) error
	Retrieve(profile string) (*Credential, error)
	List() ([]*Credential, error)
	Delete(profile string) error
	Exists(profile string) bool
}

// Manager tries its stores in order: keychain, encrypted file, environment
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a manager with every store available on this system
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "credentials.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// Store saves cred in the first store that accepts it
func (m *Manager) Store(cred *Credential) error {
	if err := cred.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}

	cred.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(cred)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve gets a profile from the first store holding it
func (m *Manager) Retrieve(profile string) (*Credential, error) {
	for _, store := range m.stores {
		if cred, err := store.Retrieve(profile); err == nil && cred != nil {
			return cred, nil
		}
	}
	return nil, fmt.Errorf("%w: profile %s", ErrCredentialsNotFound, profile)
}

// List merges every store's profiles, keeping the newest copy of each
func (m *Manager) List() ([]*Credential, error) {
	byProfile := make(map[string]*Credential)

	for _, store := range m.stores {
		creds, err := store.List()
		if err != nil {
			continue
		}
		for _, cred := range creds {
			if existing, ok := byProfile[cred.Profile]; !ok || cred.LastModified.After(existing.LastModified) {
				byProfile[cred.Profile] = cred
			}
		}
	}

	result := make([]*Credential, 0, len(byProfile))
	for _, cred := range byProfile {
		result = append(result, cred)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Profile < result[j].Profile })
	return result, nil
}

// Delete removes a profile from every store holding it
func (m *Manager) Delete(profile string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(profile); err == nil {
			deleted = true
		} else if !errors.Is(err, ErrCredentialsNotFound) && !errors.Is(err, ErrStoreUnavailable) {
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	return fmt.Errorf("%w: profile %s", ErrCredentialsNotFound, profile)
}

// ApplyToStorage fills missing credentials in cfg from profile, falling back
// to the default profile. Explicit values in cfg always win. It reports
// whether stored credentials were used.
func (m *Manager) ApplyToStorage(cfg *config.StorageConfig, profile string) bool {
	if cfg.Backend == config.BackendLocal || cfg.Backend == "" {
		return false
	}
	if cfg.AccessKeyID != "" || (cfg.Backend == config.BackendGCS && cfg.CredentialsFile != "") {
		return false
	}

	candidates := []string{profile, DefaultProfile}
	if profile == "" {
		candidates = []string{DefaultProfile}
	}

	for _, name := range candidates {
		cred, err := m.Retrieve(name)
		if err != nil || cred.Backend != cfg.Backend {
			continue
		}
		cfg.AccessKeyID = cred.AccessKeyID
		cfg.SecretAccessKey = cred.SecretAccessKey
		if cfg.CredentialsFile == "" {
			cfg.CredentialsFile = cred.CredentialsFile
		}
		if cfg.Region == "" {
			cfg.Region = cred.Region
		}
		if cfg.Endpoint == "" {
			cfg.Endpoint = cred.Endpoint
		}
		return true
	}
	return false
}

// getConfigDir returns the per-user configuration directory, creating it if needed
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "amosync")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "amosync")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "amosync")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "amosync")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return configDir, nil
}

// Sanitize returns a copy of cred with secrets masked
func Sanitize(cred *Credential) *Credential {
	if cred == nil {
		return nil
	}

	masked := *cred
	masked.AccessKeyID = maskString(cred.AccessKeyID)
	masked.SecretAccessKey = maskString(cred.SecretAccessKey)
	return &masked
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
