package auth

import (
	"os"
	"time"

	"amosync/pkg/config"
)

// EnvironmentStore exposes credentials found in the environment as a
// read-only profile. S3 keys come from AMOSYNC_ACCESS_KEY_ID and
// AMOSYNC_SECRET_ACCESS_KEY, or the older AMOS_S3_ACCESS_KEY and
// AMOS_S3_SECRET_KEY. GCS uses GOOGLE_APPLICATION_CREDENTIALS.
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(cred *Credential) error {
	return ErrStoreUnavailable
}

// Retrieve answers for any profile name, since the environment holds at most one
func (e *EnvironmentStore) Retrieve(profile string) (*Credential, error) {
	if profile == "" {
		profile = DefaultProfile
	}

	if key, secret := s3KeysFromEnv(); key != "" && secret != "" {
		return &Credential{
			Profile:         profile,
			Backend:         config.BackendS3,
			AccessKeyID:     key,
			SecretAccessKey: secret,
			Region:          os.Getenv("AMOSYNC_REGION"),
			Endpoint:        os.Getenv("AMOSYNC_ENDPOINT"),
			LastModified:    time.Now(),
		}, nil
	}

	if file := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); file != "" {
		return &Credential{
			Profile:         profile,
			Backend:         config.BackendGCS,
			CredentialsFile: file,
			LastModified:    time.Now(),
		}, nil
	}

	return nil, ErrCredentialsNotFound
}

func (e *EnvironmentStore) List() ([]*Credential, error) {
	cred, err := e.Retrieve("")
	if err != nil {
		return nil, nil
	}
	return []*Credential{cred}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(profile string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(profile string) bool {
	_, err := e.Retrieve(profile)
	return err == nil
}

func s3KeysFromEnv() (string, string) {
	key, secret := os.Getenv("AMOSYNC_ACCESS_KEY_ID"), os.Getenv("AMOSYNC_SECRET_ACCESS_KEY")
	if key == "" {
		key = os.Getenv("AMOS_S3_ACCESS_KEY")
	}
	if secret == "" {
		secret = os.Getenv("AMOS_S3_SECRET_KEY")
	}
	return key, secret
}
