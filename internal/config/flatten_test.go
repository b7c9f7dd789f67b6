package config

import (
	"reflect"
	"testing"
)

func TestFlatten(t *testing.T) {
	tests := []struct {
		name string
		in   map[string]any
		want map[string]any
	}{
		{
			name: "empty",
			in:   map[string]any{},
			want: map[string]any{},
		},
		{
			name: "top level",
			in:   map[string]any{"log_level": "info", "n": 42.0},
			want: map[string]any{"log_level": "info", "n": 42.0},
		},
		{
			name: "nested sections",
			in: map[string]any{
				"openai":    map[string]any{"base_url": "https://api.openai.com/v1", "api_key": "sk-1"},
				"s3":        map[string]any{"bucket": "artifacts", "use_path_style": true},
				"log_level": "debug",
			},
			want: map[string]any{
				"openai.base_url":   "https://api.openai.com/v1",
				"openai.api_key":    "sk-1",
				"s3.bucket":         "artifacts",
				"s3.use_path_style": true,
				"log_level":         "debug",
			},
		},
		{
			name: "deep",
			in:   map[string]any{"a": map[string]any{"b": map[string]any{"c": "deep"}}},
			want: map[string]any{"a.b.c": "deep"},
		},
		{
			name: "empty nested map produces nothing",
			in:   map[string]any{"a": map[string]any{}},
			want: map[string]any{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Flatten(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Flatten() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUnflatten(t *testing.T) {
	got := Unflatten(map[string]any{
		"assistant.id":                  "asst_1",
		"assistant.stream_tool_outputs": false,
		"s3.region":                     "eu-west-1",
		"staging_dir":                   "/tmp/stage",
	})
	want := map[string]any{
		"assistant":   map[string]any{"id": "asst_1", "stream_tool_outputs": false},
		"s3":          map[string]any{"region": "eu-west-1"},
		"staging_dir": "/tmp/stage",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Unflatten() = %v, want %v", got, want)
	}
}

func TestUnflatten_ScalarReplacedBySection(t *testing.T) {
	got := Unflatten(map[string]any{"a": "scalar", "a.b": "nested"})
	// Map iteration order decides which write wins; either way the result
	// must be a valid nested map without panicking.
	if _, ok := got["a"]; !ok {
		t.Fatal("expected key a to survive")
	}
}

func TestRoundTrip_FlattenUnflatten(t *testing.T) {
	original := map[string]any{
		"data_dir":  "/home/test/.gopherthread",
		"log_level": "debug",
		"openai": map[string]any{
			"base_url": "https://api.openai.com/v1",
			"api_key":  "sk-test123456",
		},
		"s3": map[string]any{
			"bucket":              "artifacts",
			"secret_access_key":   "wJalrXUtnFEMI",
			"presign_ttl_seconds": 3600.0,
		},
	}

	restored := Unflatten(Flatten(original))
	if !reflect.DeepEqual(restored, original) {
		t.Errorf("round trip mismatch:\n got %v\nwant %v", restored, original)
	}
}

func TestMaskSecrets(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value any
		want  any
	}{
		{"api key", "openai.api_key", "sk-test123456", "***3456"},
		{"s3 secret", "s3.secret_access_key", "wJalrXUtnFEMI", "***FEMI"},
		{"empty secret", "openai.api_key", "", ""},
		{"short secret", "openai.api_key", "ab", "***ab"},
		{"four chars", "openai.api_key", "abcd", "***abcd"},
		{"access key id is not secret", "s3.access_key_id", "AKIDEXAMPLE", "AKIDEXAMPLE"},
		{"plain key", "log_level", "debug", "debug"},
		{"non-string secret", "openai.api_key", 12.0, 12.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MaskSecrets(map[string]any{tt.key: tt.value})
			if got[tt.key] != tt.want {
				t.Errorf("MaskSecrets()[%s] = %v, want %v", tt.key, got[tt.key], tt.want)
			}
		})
	}
}

func TestIsSecretKey(t *testing.T) {
	if !IsSecretKey("openai.api_key") || !IsSecretKey("s3.secret_access_key") {
		t.Error("expected api key and s3 secret to be secret")
	}
	if IsSecretKey("s3.bucket") {
		t.Error("s3.bucket should not be secret")
	}
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		key   string
		value string
		want  any
	}{
		{"s3.bucket", "20240101", "20240101"},
		{"log_level", " debug ", " debug "},
		{"assistant.stream_tool_outputs", " FALSE", false},
		{"s3.presign_ttl_seconds", "900", 900},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := coerce(tt.key, tt.value)
			if err != nil {
				t.Fatalf("coerce(%s, %q): %v", tt.key, tt.value, err)
			}
			if got != tt.want {
				t.Errorf("coerce(%s, %q) = %v (%T), want %v (%T)", tt.key, tt.value, got, got, tt.want, tt.want)
			}
		})
	}
}

func TestSchemaCoversEveryField(t *testing.T) {
	keys := schema()
	for _, key := range []string{"data_dir", "openai.api_key", "assistant.id", "s3.bucket", "s3.use_path_style"} {
		if _, ok := keys[key]; !ok {
			t.Errorf("schema is missing %s", key)
		}
	}
	if _, ok := keys["s3"]; ok {
		t.Error("sections must not be settable keys")
	}
}
