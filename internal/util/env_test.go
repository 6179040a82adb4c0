package util

import "testing"

func TestParseBoolEnv(t *testing.T) {
	cases := map[string]bool{
		"true": true, "1": true, "YES": true, "on": true,
		"false": false, "0": false, "No": false, "off": false,
	}
	for val, want := range cases {
		t.Setenv("TEST_BOOL", val)
		if got := ParseBoolEnv("TEST_BOOL", !want); got != want {
			t.Errorf("ParseBoolEnv(%q) = %v, want %v", val, got, want)
		}
	}

	t.Setenv("TEST_BOOL", "maybe")
	if !ParseBoolEnv("TEST_BOOL", true) {
		t.Error("invalid value should return default")
	}
	t.Setenv("TEST_BOOL", "")
	if ParseBoolEnv("TEST_BOOL", false) {
		t.Error("unset value should return default")
	}
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("TEST_STR", "value")
	if got := GetEnvOrDefault("TEST_STR", "fallback"); got != "value" {
		t.Errorf("got %q", got)
	}
	t.Setenv("TEST_STR", "")
	if got := GetEnvOrDefault("TEST_STR", "fallback"); got != "fallback" {
		t.Errorf("got %q", got)
	}
}
