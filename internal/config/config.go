// Package config provides configuration loading and management for the comment sync service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pagepulse/comment-sync/internal/telemetry"
)

// EnvPrefix is the prefix of every environment variable read by the service.
const EnvPrefix = "COMMENT_SYNC"

const (
	// CursorTypeRedis stores the cursor and its lease in Redis
	CursorTypeRedis = "redis"

	// CursorTypeDatabase stores the cursor and its lease in PostgreSQL
	CursorTypeDatabase = "database"

	// CursorTypeSQLite stores the cursor and its lease in a local SQLite file
	CursorTypeSQLite = "sqlite"

	// CursorTypeFile stores the cursor in a JSON file guarded by an OS file lock
	CursorTypeFile = "file"

	// CursorTypeMemory keeps the cursor in process memory
	CursorTypeMemory = "memory"
)

const (
	// SinkTypeSheets appends rows to a Google Sheets spreadsheet
	SinkTypeSheets = "sheets"

	// SinkTypeDatabase appends rows to a PostgreSQL table
	SinkTypeDatabase = "database"
)

const (
	// StrategyCursor classifies comments against the shared cursor timestamp
	StrategyCursor = "cursor"

	// StrategySeenSet classifies comments with an instance-local set of seen ids
	StrategySeenSet = "seen-set"
)

const (
	defaultInterval        = 60 * time.Second
	defaultLockTTL         = 30 * time.Second
	defaultConnectTimeout  = 15 * time.Second
	defaultRequestTimeout  = 30 * time.Second
	defaultAPIVersion      = "v19.0"
	defaultGraphBaseURL    = "https://graph.facebook.com"
	defaultPageSize        = 25
	defaultMaxPages        = 10
	defaultMaxRetries      = 3
	defaultCursorKey       = "fb_comments_last_fetch_timestamp"
	defaultLockKey         = "fb_comments_timestamp_lock"
	defaultSheetsRange     = "Sheet1!A:J"
	defaultAdminAddress    = ":8080"
	defaultSQLiteCursorDB  = "comment-sync.db"
	defaultFileCursorState = "comment-sync-cursor.json"
)

// Option defines the interface for configuration options
type Option func(*loaderConfig) error

// loaderConfig defines the configuration for loading a configuration
type loaderConfig struct {
	path string
}

// WithConfigPath loads configuration from a YAML file
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent symlink attacks.
		// Note that this calls filepath.Clean internally.
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// Config represents the root configuration structure
type Config struct {
	// InstanceID identifies this instance in lease owner tokens and logs.
	// Defaults to the hostname.
	InstanceID string `yaml:"instanceId,omitempty"`

	Source    SourceConfig      `yaml:"source"`
	Sync      SyncConfig        `yaml:"sync"`
	Cursor    CursorConfig      `yaml:"cursor"`
	Sink      SinkConfig        `yaml:"sink"`
	Database  *DatabaseConfig   `yaml:"database,omitempty"`
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
	Admin     *AdminConfig      `yaml:"admin,omitempty"`
}

// SourceConfig defines where posts and comments are read from
type SourceConfig struct {
	Facebook *FacebookConfig `yaml:"facebook,omitempty"`
}

// FacebookConfig defines the Graph API page source
type FacebookConfig struct {
	// PageID is the page whose posts are polled
	PageID string `yaml:"pageId"`

	// AccessTokenFile is the path to a file holding the page access token.
	// When empty, COMMENT_SYNC_FB_ACCESS_TOKEN is used.
	AccessTokenFile string `yaml:"accessTokenFile,omitempty"`

	// APIVersion is the Graph API version segment, e.g. "v19.0"
	APIVersion string `yaml:"apiVersion,omitempty"`

	// BaseURL is the Graph API root
	BaseURL string `yaml:"baseUrl,omitempty"`

	// PageSize is the "limit" sent on list calls
	PageSize int `yaml:"pageSize,omitempty"`

	// MaxPages bounds how many "paging.next" links are followed per listing
	MaxPages int `yaml:"maxPages,omitempty"`

	// ServerSideSince sends the cursor as the "since" parameter. Defaults to true.
	ServerSideSince *bool `yaml:"serverSideSince,omitempty"`

	// ConnectTimeout bounds dialing the API (e.g. "15s")
	ConnectTimeout string `yaml:"connectTimeout,omitempty"`

	// Timeout bounds a whole request (e.g. "30s")
	Timeout string `yaml:"timeout,omitempty"`

	// MaxRetries is the number of attempts for retryable responses
	MaxRetries int `yaml:"maxRetries,omitempty"`
}

// SyncConfig defines the polling behaviour
type SyncConfig struct {
	// Interval between passes (e.g. "60s", "5m")
	Interval string `yaml:"interval,omitempty"`

	// Strategy selects how new comments are detected: "cursor" or "seen-set"
	Strategy string `yaml:"strategy,omitempty"`

	// SkipOverlappingPasses skips a tick while the previous pass is still running.
	// Defaults to true.
	SkipOverlappingPasses *bool `yaml:"skipOverlappingPasses,omitempty"`

	// StatusFile persists the last pass status across restarts when set
	StatusFile string `yaml:"statusFile,omitempty"`
}

// CursorConfig defines the shared cursor store
type CursorConfig struct {
	// Type is one of redis, database, sqlite, file, memory
	Type string `yaml:"type,omitempty"`

	// Key names the cursor value in the store
	Key string `yaml:"key,omitempty"`

	// LockKey names the lease guarding cursor writes
	LockKey string `yaml:"lockKey,omitempty"`

	// LockTTL is the lease lifetime (e.g. "30s")
	LockTTL string `yaml:"lockTTL,omitempty"`

	// Monotonic refuses commits that would move the cursor backwards
	Monotonic bool `yaml:"monotonic,omitempty"`

	Redis  *RedisConfig      `yaml:"redis,omitempty"`
	SQLite *SQLiteConfig     `yaml:"sqlite,omitempty"`
	File   *FileCursorConfig `yaml:"file,omitempty"`
}

// RedisConfig defines the Redis connection used by the redis cursor store
type RedisConfig struct {
	Address  string `yaml:"address"`
	Username string `yaml:"username,omitempty"`

	// PasswordFile is the path to a file containing the Redis password.
	// When empty, COMMENT_SYNC_REDIS_PASSWORD is used if set.
	PasswordFile string `yaml:"passwordFile,omitempty"`

	DB  int  `yaml:"db,omitempty"`
	TLS bool `yaml:"tls,omitempty"`
}

// SQLiteConfig defines the sqlite cursor store
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// FileCursorConfig defines the file cursor store
type FileCursorConfig struct {
	Path string `yaml:"path"`
}

// SinkConfig defines where rows are appended
type SinkConfig struct {
	// Type is one of sheets, database
	Type string `yaml:"type"`

	Sheets *SheetsConfig `yaml:"sheets,omitempty"`
}

// SheetsConfig defines the Google Sheets sink
type SheetsConfig struct {
	SpreadsheetID string `yaml:"spreadsheetId"`

	// Range is the A1 range rows are appended to
	Range string `yaml:"range,omitempty"`

	// CredentialsFile is a service account JSON key
	CredentialsFile string `yaml:"credentialsFile,omitempty"`

	// Endpoint overrides the Sheets API endpoint. Without CredentialsFile,
	// requests to it are sent unauthenticated.
	Endpoint string `yaml:"endpoint,omitempty"`
}

// AdminConfig defines the administrative HTTP surface
type AdminConfig struct {
	Address  string `yaml:"address,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

// DatabaseConfig defines database connection settings
type DatabaseConfig struct {
	// Host is the database server hostname or IP address
	Host string `yaml:"host"`

	// Port is the database server port
	Port int `yaml:"port"`

	// User is the database username
	User string `yaml:"user"`

	// PasswordFile is the path to a file containing the database password
	// This is the recommended approach for production deployments
	// The file should contain only the password with optional trailing whitespace
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int32 `yaml:"maxOpenConns,omitempty"`

	// MaxIdleConns is the maximum number of idle connections in the pool
	MaxIdleConns int32 `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is the maximum lifetime of a connection (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`

	// DynamicAuth replaces the static password with short-lived credentials
	DynamicAuth *DynamicAuthConfig `yaml:"dynamicAuth,omitempty"`
}

// DynamicAuthConfig selects the provider of short-lived database credentials.
// At most one provider may be set.
type DynamicAuthConfig struct {
	AWSRDSIAM *DynamicAuthAWSRDSIAM `yaml:"awsRdsIam,omitempty"`
}

// DynamicAuthAWSRDSIAM configures AWS RDS IAM authentication
type DynamicAuthAWSRDSIAM struct {
	// Region is the AWS region of the database, or "detect" to read it from IMDS
	Region string `yaml:"region"`
}

// readSecret returns the trimmed content of path, or the value of envVar when path is empty.
func readSecret(path, envVar string) (string, bool, error) {
	if path != "" {
		// Use filepath.Clean to prevent path traversal attacks
		data, err := os.ReadFile(filepath.Clean(path))
		if err != nil {
			return "", false, fmt.Errorf("failed to read secret from file %s: %w", path, err)
		}
		return strings.TrimSpace(string(data)), true, nil
	}

	if v := os.Getenv(envVar); v != "" {
		return v, true, nil
	}

	return "", false, nil
}

// GetPassword returns the database password using the following priority:
// 1. Read from PasswordFile if specified
// 2. Read from COMMENT_SYNC_DATABASE_PASSWORD environment variable
//
// The password from file will have leading/trailing whitespace trimmed.
func (d *DatabaseConfig) GetPassword() (string, error) {
	envVar := EnvPrefix + "_DATABASE_PASSWORD"
	password, ok, err := readSecret(d.PasswordFile, envVar)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", fmt.Errorf("no database password configured: set passwordFile or %s environment variable", envVar)
	}
	return password, nil
}

// GetConnectionString builds a PostgreSQL connection string with proper password handling.
// The password is URL-escaped to handle special characters safely. With dynamic
// auth configured no password is embedded; it is supplied per connection instead.
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	if d.DynamicAuth != nil {
		return d.BuildConnectionStringWithAuth(""), nil
	}

	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}
	return d.BuildConnectionStringWithAuth(password), nil
}

// BuildConnectionStringWithAuth builds a connection string for the configured
// user with the given password. An empty password is left out of the URL.
func (d *DatabaseConfig) BuildConnectionStringWithAuth(password string) string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	userInfo := url.QueryEscape(d.User)
	if password != "" {
		userInfo += ":" + url.QueryEscape(password)
	}

	return fmt.Sprintf(
		"postgres://%s@%s:%d/%s?sslmode=%s",
		userInfo,
		d.Host,
		d.Port,
		d.Database,
		sslMode,
	)
}

// GetAccessToken returns the Graph API access token from AccessTokenFile or
// the COMMENT_SYNC_FB_ACCESS_TOKEN environment variable.
func (f *FacebookConfig) GetAccessToken() (string, error) {
	envVar := EnvPrefix + "_FB_ACCESS_TOKEN"
	token, ok, err := readSecret(f.AccessTokenFile, envVar)
	if err != nil {
		return "", err
	}
	if !ok || token == "" {
		return "", fmt.Errorf("no access token configured: set accessTokenFile or %s environment variable", envVar)
	}
	return token, nil
}

// GetPassword returns the Redis password, or an empty string when none is configured.
func (r *RedisConfig) GetPassword() (string, error) {
	password, _, err := readSecret(r.PasswordFile, EnvPrefix+"_REDIS_PASSWORD")
	return password, err
}

// LoadConfig loads and parses configuration from a YAML file
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	if loaderCfg.path == "" {
		return nil, fmt.Errorf("path is required")
	}

	data, err := os.ReadFile(loaderCfg.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// GetInstanceID returns the configured instance id, falling back to the hostname
func (c *Config) GetInstanceID() string {
	if c.InstanceID != "" {
		return c.InstanceID
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "comment-sync"
}

// GetAdminAddress returns the admin listen address
func (c *Config) GetAdminAddress() string {
	if c.Admin == nil || c.Admin.Address == "" {
		return defaultAdminAddress
	}
	return c.Admin.Address
}

// AdminEnabled reports whether the admin HTTP surface should be served
func (c *Config) AdminEnabled() bool {
	return c.Admin == nil || !c.Admin.Disabled
}

// NeedsDatabase reports whether any component is configured to use PostgreSQL
func (c *Config) NeedsDatabase() bool {
	return c.Cursor.GetType() == CursorTypeDatabase || c.Sink.Type == SinkTypeDatabase
}

// GetInterval returns the polling interval
func (s *SyncConfig) GetInterval() time.Duration {
	return parseDurationOr(s.Interval, defaultInterval)
}

// GetStrategy returns the change detection strategy
func (s *SyncConfig) GetStrategy() string {
	if s.Strategy == "" {
		return StrategyCursor
	}
	return s.Strategy
}

// ShouldSkipOverlappingPasses reports whether ticks are skipped while a pass is in flight
func (s *SyncConfig) ShouldSkipOverlappingPasses() bool {
	return s.SkipOverlappingPasses == nil || *s.SkipOverlappingPasses
}

// GetType returns the cursor store type
func (c *CursorConfig) GetType() string {
	if c.Type == "" {
		return CursorTypeMemory
	}
	return c.Type
}

// GetKey returns the cursor key
func (c *CursorConfig) GetKey() string {
	if c.Key == "" {
		return defaultCursorKey
	}
	return c.Key
}

// GetLockKey returns the lease key
func (c *CursorConfig) GetLockKey() string {
	if c.LockKey == "" {
		return defaultLockKey
	}
	return c.LockKey
}

// GetLockTTL returns the lease lifetime
func (c *CursorConfig) GetLockTTL() time.Duration {
	return parseDurationOr(c.LockTTL, defaultLockTTL)
}

// GetSQLitePath returns the sqlite database path
func (c *CursorConfig) GetSQLitePath() string {
	if c.SQLite == nil || c.SQLite.Path == "" {
		return defaultSQLiteCursorDB
	}
	return c.SQLite.Path
}

// GetFilePath returns the file cursor state path
func (c *CursorConfig) GetFilePath() string {
	if c.File == nil || c.File.Path == "" {
		return defaultFileCursorState
	}
	return c.File.Path
}

// GetRange returns the A1 append range
func (s *SheetsConfig) GetRange() string {
	if s.Range == "" {
		return defaultSheetsRange
	}
	return s.Range
}

// GetAPIVersion returns the Graph API version
func (f *FacebookConfig) GetAPIVersion() string {
	if f.APIVersion == "" {
		return defaultAPIVersion
	}
	return f.APIVersion
}

// GetBaseURL returns the Graph API root without a trailing slash
func (f *FacebookConfig) GetBaseURL() string {
	if f.BaseURL == "" {
		return defaultGraphBaseURL
	}
	return strings.TrimRight(f.BaseURL, "/")
}

// GetPageSize returns the list page size
func (f *FacebookConfig) GetPageSize() int {
	if f.PageSize <= 0 {
		return defaultPageSize
	}
	return f.PageSize
}

// GetMaxPages returns how many pages are followed per listing
func (f *FacebookConfig) GetMaxPages() int {
	if f.MaxPages <= 0 {
		return defaultMaxPages
	}
	return f.MaxPages
}

// UseServerSideSince reports whether the cursor is passed to the API as "since"
func (f *FacebookConfig) UseServerSideSince() bool {
	return f == nil || f.ServerSideSince == nil || *f.ServerSideSince
}

// GetConnectTimeout returns the dial timeout
func (f *FacebookConfig) GetConnectTimeout() time.Duration {
	return parseDurationOr(f.ConnectTimeout, defaultConnectTimeout)
}

// GetTimeout returns the per-request timeout
func (f *FacebookConfig) GetTimeout() time.Duration {
	return parseDurationOr(f.Timeout, defaultRequestTimeout)
}

// GetMaxRetries returns the attempt budget for retryable responses
func (f *FacebookConfig) GetMaxRetries() int {
	if f.MaxRetries <= 0 {
		return defaultMaxRetries
	}
	return f.MaxRetries
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	if c.Source.Facebook == nil {
		errs = append(errs, fmt.Errorf("source.facebook must be configured"))
	} else {
		errs = append(errs, validateFacebookConfig(c.Source.Facebook))
	}

	errs = append(errs,
		validateSyncConfig(&c.Sync),
		validateCursorConfig(&c.Cursor),
		validateSinkConfig(&c.Sink),
	)

	if c.NeedsDatabase() && c.Database == nil {
		errs = append(errs, fmt.Errorf("database must be configured when cursor.type or sink.type is %q", "database"))
	}

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}

func validateFacebookConfig(fb *FacebookConfig) error {
	if fb.PageID == "" {
		return fmt.Errorf("source.facebook.pageId is required")
	}
	if _, err := url.ParseRequestURI(fb.GetBaseURL()); err != nil {
		return fmt.Errorf("source.facebook.baseUrl is invalid: %w", err)
	}
	for name, value := range map[string]string{
		"connectTimeout": fb.ConnectTimeout,
		"timeout":        fb.Timeout,
	} {
		if err := validateDuration(value); err != nil {
			return fmt.Errorf("source.facebook.%s %w", name, err)
		}
	}
	return nil
}

func validateSyncConfig(s *SyncConfig) error {
	if err := validateDuration(s.Interval); err != nil {
		return fmt.Errorf("sync.interval %w", err)
	}
	switch s.GetStrategy() {
	case StrategyCursor, StrategySeenSet:
	default:
		return fmt.Errorf("sync.strategy must be %q or %q, got %q", StrategyCursor, StrategySeenSet, s.Strategy)
	}
	return nil
}

func validateCursorConfig(c *CursorConfig) error {
	if err := validateDuration(c.LockTTL); err != nil {
		return fmt.Errorf("cursor.lockTTL %w", err)
	}
	switch c.GetType() {
	case CursorTypeRedis:
		if c.Redis == nil || c.Redis.Address == "" {
			return fmt.Errorf("cursor.redis.address is required when cursor.type is %q", CursorTypeRedis)
		}
	case CursorTypeDatabase, CursorTypeSQLite, CursorTypeFile, CursorTypeMemory:
	default:
		return fmt.Errorf("unsupported cursor.type %q", c.Type)
	}
	return nil
}

func validateSinkConfig(s *SinkConfig) error {
	switch s.Type {
	case SinkTypeSheets:
		if s.Sheets == nil || s.Sheets.SpreadsheetID == "" {
			return fmt.Errorf("sink.sheets.spreadsheetId is required when sink.type is %q", SinkTypeSheets)
		}
	case SinkTypeDatabase:
	case "":
		return fmt.Errorf("sink.type is required")
	default:
		return fmt.Errorf("unsupported sink.type %q", s.Type)
	}
	return nil
}

// validateDuration accepts an empty value (use the default) or a positive duration
func validateDuration(s string) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("must be a valid duration (e.g., '30s', '5m'): %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("must be positive, got %s", s)
	}
	return nil
}
