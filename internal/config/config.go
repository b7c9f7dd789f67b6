package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	DataDir    string `json:"data_dir"`
	LogLevel   string `json:"log_level"`
	LogFormat  string `json:"log_format"`
	StagingDir string `json:"staging_dir"`
	OpenAI     struct {
		BaseURL string `json:"base_url"`
		APIKey  string `json:"api_key"`
	} `json:"openai"`
	Assistant struct {
		ID                string `json:"id"`
		ThreadID          string `json:"thread_id"`
		StreamToolOutputs bool   `json:"stream_tool_outputs"`
	} `json:"assistant"`
	S3 struct {
		Bucket            string `json:"bucket"`
		Region            string `json:"region"`
		AccessKeyID       string `json:"access_key_id"`
		SecretAccessKey   string `json:"secret_access_key"`
		Endpoint          string `json:"endpoint"`
		UsePathStyle      bool   `json:"use_path_style"`
		PresignTTLSeconds int    `json:"presign_ttl_seconds"`
	} `json:"s3"`
}

// Log formats accepted by log_format.
const (
	LogFormatColor = "color"
	LogFormatText  = "text"
	LogFormatJSON  = "json"
)

var (
	ErrMissingAssistant = errors.New("assistant.id is not set (config or OPENAI_ASSISTANT_ID)")
	ErrMissingBucket    = errors.New("s3.bucket is not set (config or S3_BUCKET_NAME)")
	ErrUnknownKey       = errors.New("unknown config key")
)

func defaults() *Config {
	cfg := &Config{
		DataDir:   filepath.Join(os.Getenv("HOME"), ".gopherthread"),
		LogLevel:  "info",
		LogFormat: LogFormatColor,
	}
	cfg.OpenAI.BaseURL = "https://api.openai.com/v1"
	cfg.Assistant.StreamToolOutputs = true
	cfg.S3.Region = "us-east-1"
	cfg.S3.PresignTTLSeconds = 3600
	return cfg
}

// Load reads the config file, writing defaults if it does not exist, and
// applies environment overrides on top.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else if os.IsNotExist(err) {
		if err := Save(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// applyEnv overrides file values with environment variables (highest precedence).
func applyEnv(cfg *Config) {
	setString := func(dst *string, key string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setString(&cfg.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&cfg.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&cfg.Assistant.ID, "OPENAI_ASSISTANT_ID")
	setString(&cfg.Assistant.ThreadID, "OPENAI_THREAD_ID")
	setString(&cfg.S3.AccessKeyID, "AWS_ACCESS_KEY_ID")
	setString(&cfg.S3.SecretAccessKey, "AWS_SECRET_ACCESS_KEY")
	setString(&cfg.S3.Bucket, "S3_BUCKET_NAME")
	setString(&cfg.S3.Region, "AWS_REGION")
	setString(&cfg.S3.Endpoint, "S3_ENDPOINT")

	if v := os.Getenv("STREAM_TOOL_OUTPUTS"); v != "" {
		cfg.Assistant.StreamToolOutputs = strings.EqualFold(strings.TrimSpace(v), "true")
	}
}

// Validate checks what a chat session needs to start.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Assistant.ID) == "" {
		return ErrMissingAssistant
	}
	switch c.LogFormat {
	case "", LogFormatColor, LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("unknown log_format %q (want color, text or json)", c.LogFormat)
	}
	return nil
}

// ValidateStorage checks that blob storage is configured.
func (c *Config) ValidateStorage() error {
	if strings.TrimSpace(c.S3.Bucket) == "" {
		return ErrMissingBucket
	}
	return nil
}

// PresignTTL is how long download links stay valid.
func (c *Config) PresignTTL() time.Duration {
	if c.S3.PresignTTLSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(c.S3.PresignTTLSeconds) * time.Second
}

// Save writes cfg to path atomically, creating the parent directory.
func Save(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeAtomic(path, append(data, '\n'))
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename config: %w", err)
	}
	return nil
}

// ToMap converts cfg to a nested map via its JSON form.
func ToMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// ListValues returns cfg as flat dot keys, optionally with secrets masked.
func ListValues(cfg *Config, mask bool) (map[string]any, error) {
	m, err := ToMap(cfg)
	if err != nil {
		return nil, err
	}
	flat := Flatten(m)
	if mask {
		flat = MaskSecrets(flat)
	}
	return flat, nil
}

// GetValue returns the value stored in the config file for a dot key.
// Environment overrides are not applied.
func GetValue(path, key string) (any, error) {
	if _, err := Load(path); err != nil {
		return nil, err
	}
	flat, err := readFlat(path)
	if err != nil {
		return nil, err
	}
	v, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return v, nil
}

// SetValue stores value under a dot key in an existing config file. The
// key must be a Config field and the value is converted to that field's
// type. The file is only replaced if the result still loads.
func SetValue(path, key, value string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	typed, err := coerce(key, value)
	if err != nil {
		return err
	}
	flat, err := readFlat(path)
	if err != nil {
		return err
	}
	flat[key] = typed

	data, err := json.MarshalIndent(Unflatten(flat), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := json.Unmarshal(data, defaults()); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return writeAtomic(path, append(data, '\n'))
}

func readFlat(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return Flatten(m), nil
}
