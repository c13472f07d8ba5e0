package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	s3storage "github.com/tendant/image-saver/pkg/mediasaver/storage/s3"
)

// envVar binds one environment variable to a setting. Unset and empty
// variables leave the setting alone.
type envVar struct {
	key   string
	apply func(c *ServerConfig, value string) error
}

// envVars lists every variable WithEnv reads, without the prefix.
var envVars = []envVar{
	{"DATABASE_URL", func(c *ServerConfig, v string) error {
		if v == "memory" {
			v = ""
		}
		c.Database.URL = v
		return nil
	}},
	{"DB_SCHEMA", func(c *ServerConfig, v string) error { c.Database.Schema = v; return nil }},
	{"AUTO_MIGRATE", boolVar(func(c *ServerConfig) *bool { return &c.Database.AutoMigrate })},
	{"STORAGE_URL", applyStorageURL},

	{"API_LEVEL", intVar(func(c *ServerConfig) *int { return &c.Platform.APILevel })},
	{"EXTERNAL_DIR", func(c *ServerConfig, v string) error { c.Platform.ExternalDir = v; return nil }},
	{"TEMP_DIR", func(c *ServerConfig, v string) error { c.Platform.TempDir = v; return nil }},

	{"OBJECT_KEY_GENERATOR", func(c *ServerConfig, v string) error { c.Saving.ObjectKeys = v; return nil }},
	{"PREVIEWS", boolVar(func(c *ServerConfig) *bool { return &c.Saving.Previews })},
	{"PREVIEW_MAX_EDGE", intVar(func(c *ServerConfig) *int { return &c.Saving.PreviewMaxEdge })},
	{"EVENT_LOG", boolVar(func(c *ServerConfig) *bool { return &c.Saving.EventLog })},
	{"NOTICE_CAPACITY", intVar(func(c *ServerConfig) *int { return &c.Saving.NoticeCapacity })},
}

// WithEnv reads the variables below, each prefixed with prefix:
//
//	DATABASE_URL          postgres://... for Postgres; empty or "memory" keeps the index in memory
//	DB_SCHEMA             Postgres search_path
//	AUTO_MIGRATE          create the media_entry table on startup
//	STORAGE_URL           memory://, file:///dir[?url_prefix=...] or s3://bucket[/prefix][?...]
//	API_LEVEL             platform API level; below 29 copies go to EXTERNAL_DIR
//	EXTERNAL_DIR          root of legacy copies
//	TEMP_DIR              staging directory for legacy downloads
//	OBJECT_KEY_GENERATOR  relative-path, git-like or hashed
//	PREVIEWS              render thumbnails (default true)
//	PREVIEW_MAX_EDGE      longest thumbnail edge in pixels
//	EVENT_LOG             log index events (default true)
//	NOTICE_CAPACITY       notices kept for the notices endpoint
//
// An s3 STORAGE_URL takes its credentials from the unprefixed AWS_ACCESS_KEY_ID
// and AWS_SECRET_ACCESS_KEY, and AWS_REGION when no region parameter is given.
func WithEnv(prefix string) Option {
	return func(c *ServerConfig) error {
		for _, v := range envVars {
			value, ok := os.LookupEnv(prefix + v.key)
			if !ok || value == "" {
				continue
			}
			if err := v.apply(c, value); err != nil {
				return fmt.Errorf("%s%s: %w", prefix, v.key, err)
			}
		}
		return nil
	}
}

func boolVar(field func(*ServerConfig) *bool) func(*ServerConfig, string) error {
	return func(c *ServerConfig, v string) error {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid boolean %q", v)
		}
		*field(c) = parsed
		return nil
	}
}

func intVar(field func(*ServerConfig) *int) func(*ServerConfig, string) error {
	return func(c *ServerConfig, v string) error {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid integer %q", v)
		}
		*field(c) = parsed
		return nil
	}
}

// applyStorageURL registers the backend a STORAGE_URL describes and makes it
// the default.
func applyStorageURL(c *ServerConfig, raw string) error {
	if raw == "memory" {
		raw = "memory://"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	query := u.Query()

	var backend BackendConfig
	switch u.Scheme {
	case "memory":
		backend = BackendConfig{Name: BackendMemory, Type: BackendMemory}

	case "file":
		// file://./data is a relative path with "." parsed as the host
		dir := u.Host + u.Path
		if dir == "" {
			return fmt.Errorf("file url %q has no directory", raw)
		}
		backend = BackendConfig{Name: BackendFS, Type: BackendFS}
		backend.FS.BaseDir = dir
		backend.FS.URLPrefix = query.Get("url_prefix")

	case "s3":
		if u.Host == "" {
			return fmt.Errorf("s3 url %q has no bucket", raw)
		}
		backend = BackendConfig{Name: BackendS3, Type: BackendS3}
		backend.S3, err = s3FromQuery(u.Host, strings.Trim(u.Path, "/"), query)
		if err != nil {
			return err
		}

	default:
		return fmt.Errorf("unsupported storage url %q (use memory://, file:// or s3://)", raw)
	}

	c.Storage.put(backend)
	c.Storage.Default = backend.Name
	return nil
}

func s3FromQuery(bucket, keyPrefix string, query url.Values) (s3storage.Config, error) {
	cfg := s3storage.Config{
		Bucket:          bucket,
		KeyPrefix:       keyPrefix,
		Region:          query.Get("region"),
		Endpoint:        query.Get("endpoint"),
		Encryption:      query.Get("encryption"),
		KMSKeyID:        query.Get("kms_key_id"),
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
	}
	if cfg.Region == "" {
		cfg.Region = os.Getenv("AWS_REGION")
	}

	flags := map[string]*bool{
		"path_style":    &cfg.UsePathStyle,
		"create_bucket": &cfg.CreateBucket,
	}
	for name, field := range flags {
		if v := query.Get(name); v != "" {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return cfg, fmt.Errorf("invalid %s %q", name, v)
			}
			*field = parsed
		}
	}
	if v := query.Get("url_expiry"); v != "" {
		expiry, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid url_expiry %q", v)
		}
		cfg.URLExpiry = expiry
	}
	return cfg, nil
}
