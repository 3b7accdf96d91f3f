package credentials

import (
	"errors"
	"fmt"
	"strings"

	"vidshape/kvstore"
	"vidshape/logger"
	"vidshape/utils"
)

// ErrNotFound is returned when no credentials exist for a key.
var ErrNotFound = errors.New("credentials not found")

// Required fields per writer backend.
var requiredFields = map[string][]string{
	"s3":   {"bucket", "region", "accessKey", "secretKey"},
	"gcs":  {"bucket", "serviceAccountJSON"},
	"sftp": {"host", "user"},
}

var store *kvstore.Store

// OpenDB opens the Pebble DB for credentials at the specified path
func OpenDB(dbPath string) error {
	s, err := kvstore.Open(dbPath)
	if err != nil {
		logger.Errorf("Failed to open credentials DB: %v", err)
		return err
	}
	store = s
	return nil
}

// CloseDB closes the DB
func CloseDB() error {
	s := store
	store = nil
	return s.Close()
}

func ready() error {
	if store == nil {
		return errors.New("credentials store not initialized")
	}
	return nil
}

// Validate checks that creds carry what the backend type needs.
func Validate(backend string, creds map[string]string) error {
	fields, ok := requiredFields[backend]
	if !ok {
		return fmt.Errorf("unknown writer backend %q", backend)
	}
	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(creds[f]) == "" {
			missing = append(missing, f)
		}
	}
	if backend == "sftp" && creds["password"] == "" && creds["privateKey"] == "" {
		missing = append(missing, "password|privateKey")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s credentials missing %s", backend, strings.Join(missing, ", "))
	}
	return nil
}

// GetCredentials returns the stored credentials for key.
func GetCredentials(key string) (map[string]string, error) {
	if err := ready(); err != nil {
		return nil, err
	}
	creds := make(map[string]string)
	if err := store.GetJSON(key, &creds); err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return creds, nil
}

// StoreCredentials stores the credentials map under the given key
func StoreCredentials(key string, creds map[string]string) error {
	if err := ready(); err != nil {
		return err
	}
	return store.SetJSON(key, creds)
}

// Register validates creds for backend and stores them under a fresh key.
func Register(backend string, creds map[string]string) (string, error) {
	if err := Validate(backend, creds); err != nil {
		return "", err
	}
	key, err := utils.GenerateKey(utils.CredentialKeyLength)
	if err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	stored := make(map[string]string, len(creds)+1)
	for k, v := range creds {
		stored[k] = v
	}
	stored["type"] = backend
	if err := StoreCredentials(key, stored); err != nil {
		return "", err
	}
	return key, nil
}

// DeleteCredentials deletes the credentials for the given key
func DeleteCredentials(key string) error {
	if err := ready(); err != nil {
		return err
	}
	return store.Delete(key)
}

// CheckHealth performs a basic health check on the credentials database
func CheckHealth() error {
	if err := ready(); err != nil {
		return err
	}
	return store.CheckHealth()
}
