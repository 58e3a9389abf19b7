package config

import "testing"

func TestBusPathPrecedence(t *testing.T) {
	t.Setenv("SAMSUNGHVAC_BUS", "")
	t.Setenv("RUNTIME_DIRECTORY", "")

	if got, want := BusPath("/explicit"), "/explicit"; got != want {
		t.Fatalf("flag precedence: got %q, want %q", got, want)
	}

	t.Setenv("SAMSUNGHVAC_BUS", "/from-env")
	if got, want := BusPath(""), "/from-env"; got != want {
		t.Fatalf("env fallback: got %q, want %q", got, want)
	}

	t.Setenv("SAMSUNGHVAC_BUS", "")
	t.Setenv("RUNTIME_DIRECTORY", "/run/custom")
	if got, want := BusPath(""), "/run/custom/bus"; got != want {
		t.Fatalf("runtime dir default: got %q, want %q", got, want)
	}
}
