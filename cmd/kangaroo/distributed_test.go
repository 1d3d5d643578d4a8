package main

import (
	"strings"
	"testing"
)

func TestDefaultClientIDHasHostAndPidParts(t *testing.T) {
	id := defaultClientID()
	if !strings.Contains(id, "_") {
		t.Fatalf("client id %q missing host_pid separator", id)
	}
}
