package main

import (
	"bytes"
	"crypto/tls"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestRun_CreatesAndReusesCA(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "certs")

	if err := run(dir, []string{"localhost", "127.0.0.1"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	for _, name := range []string{"ca.crt", "ca.key", "server.crt", "server.key"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing %s: %v", name, err)
		}
	}
	if _, err := tls.LoadX509KeyPair(filepath.Join(dir, "server.crt"), filepath.Join(dir, "server.key")); err != nil {
		t.Errorf("server key pair unusable: %v", err)
	}

	firstCA, _ := os.ReadFile(filepath.Join(dir, "ca.crt"))
	firstServer, _ := os.ReadFile(filepath.Join(dir, "server.crt"))

	if err := run(dir, []string{"localhost"}); err != nil {
		t.Fatalf("second run: %v", err)
	}
	secondCA, _ := os.ReadFile(filepath.Join(dir, "ca.crt"))
	secondServer, _ := os.ReadFile(filepath.Join(dir, "server.crt"))

	if !bytes.Equal(firstCA, secondCA) {
		t.Error("existing CA was replaced")
	}
	if bytes.Equal(firstServer, secondServer) {
		t.Error("server certificate was not reissued")
	}
}

func TestRun_NoHosts(t *testing.T) {
	if err := run(t.TempDir(), nil); err == nil {
		t.Error("expected error without hosts")
	}
}

func TestSplitHosts(t *testing.T) {
	got := splitHosts(" localhost, ,127.0.0.1,")
	want := []string{"localhost", "127.0.0.1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitHosts = %v; want %v", got, want)
	}
}
