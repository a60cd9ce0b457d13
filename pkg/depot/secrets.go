package depot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/magiconair/properties"
)

// DefaultSecretDir is where depot secret files are mounted.
const DefaultSecretDir = "/etc/dataos/secret"

// Property keys inside a depot secret.
const (
	PropAWSAccessKeyID      = "awsaccesskeyid"
	PropAWSSecretAccessKey  = "awssecretaccesskey"
	PropAzureStorageAccount = "azurestorageaccountname"
	PropAzureStorageKey     = "azurestorageaccountkey"
)

const redacted = "[REDACTED]"

// Credentials is the property set registered for a depot. Its string and
// log forms list key names only.
type Credentials struct {
	depot string
	props map[string]string
}

// NewCredentials wraps a property map for a depot.
func NewCredentials(depot string, props map[string]string) *Credentials {
	return &Credentials{depot: depot, props: props}
}

// Depot returns the depot id the credentials belong to.
func (c *Credentials) Depot() string {
	return c.depot
}

// Get returns a property value.
func (c *Credentials) Get(key string) (string, bool) {
	v, ok := c.props[key]
	return v, ok
}

// AWSCredentials is an access key pair for object storage.
type AWSCredentials struct {
	AccessKeyID     string
	SecretAccessKey string
}

// AzureCredentials is a storage account name and key for blob storage.
type AzureCredentials struct {
	AccountName string
	AccountKey  string
}

// AWS extracts the object storage key pair.
func (c *Credentials) AWS() (AWSCredentials, error) {
	id, err := c.require(PropAWSAccessKeyID)
	if err != nil {
		return AWSCredentials{}, err
	}
	secret, err := c.require(PropAWSSecretAccessKey)
	if err != nil {
		return AWSCredentials{}, err
	}
	return AWSCredentials{AccessKeyID: id, SecretAccessKey: secret}, nil
}

// Azure extracts the storage account name and key.
func (c *Credentials) Azure() (AzureCredentials, error) {
	name, err := c.require(PropAzureStorageAccount)
	if err != nil {
		return AzureCredentials{}, err
	}
	key, err := c.require(PropAzureStorageKey)
	if err != nil {
		return AzureCredentials{}, err
	}
	return AzureCredentials{AccountName: name, AccountKey: key}, nil
}

func (c *Credentials) require(key string) (string, error) {
	v, ok := c.Get(key)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: depot %s: property %q missing", ErrSecret, c.depot, key)
	}
	return v, nil
}

// Keys returns the property names, sorted.
func (c *Credentials) Keys() []string {
	keys := make([]string, 0, len(c.props))
	for k := range c.props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// String implements fmt.Stringer without exposing values.
func (c *Credentials) String() string {
	return fmt.Sprintf("credentials(depot=%s, keys=[%s], values=%s)", c.depot, strings.Join(c.Keys(), ","), redacted)
}

// LogValue implements slog.LogValuer without exposing values.
func (c *Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("depot", c.depot),
		slog.Any("keys", c.Keys()),
	)
}

// FileSecretStore reads depot secrets from a directory of property files,
// falling back to an environment variable named after the depot.
type FileSecretStore struct {
	dir       string
	lookupEnv func(string) (string, bool)
}

// FileSecretStoreOption configures a FileSecretStore.
type FileSecretStoreOption func(*FileSecretStore)

// WithLookupEnv replaces os.LookupEnv for the environment fallback.
func WithLookupEnv(fn func(string) (string, bool)) FileSecretStoreOption {
	return func(s *FileSecretStore) {
		s.lookupEnv = fn
	}
}

// NewFileSecretStore creates a store rooted at dir. An empty dir uses DefaultSecretDir.
func NewFileSecretStore(dir string, opts ...FileSecretStoreOption) *FileSecretStore {
	if dir == "" {
		dir = DefaultSecretDir
	}
	s := &FileSecretStore{dir: dir, lookupEnv: os.LookupEnv}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dir returns the secret root directory.
func (s *FileSecretStore) Dir() string {
	return s.dir
}

// Secret loads the credentials for a depot.
func (s *FileSecretStore) Secret(_ context.Context, depot string) (*Credentials, error) {
	if depot == "" || depot != filepath.Base(depot) || depot == "." || depot == ".." {
		return nil, fmt.Errorf("%w: invalid depot id %q", ErrSecret, depot)
	}

	loader := &properties.Loader{Encoding: properties.UTF8, DisableExpansion: true}

	path := filepath.Join(s.dir, depot)
	_, err := os.Stat(path)
	switch {
	case err == nil:
		p, err := loader.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("%w: depot %s: parsing %s: %w", ErrSecret, depot, path, err)
		}
		slog.Debug("depot secret loaded from file", "depot", depot, "path", path)
		return NewCredentials(depot, p.Map()), nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("%w: depot %s: %w", ErrSecret, depot, err)
	}

	text, ok := s.lookupEnv(depot)
	if !ok || text == "" {
		return nil, fmt.Errorf("%w: %w for depot %s (path=%s, env=%s)", ErrSecret, ErrSecretNotFound, depot, s.dir, depot)
	}

	p, err := loader.LoadBytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("%w: depot %s: parsing env %s: %w", ErrSecret, depot, depot, err)
	}
	slog.Debug("depot secret loaded from environment", "depot", depot)
	return NewCredentials(depot, p.Map()), nil
}

// Verify interface compliance.
var _ SecretStore = (*FileSecretStore)(nil)
