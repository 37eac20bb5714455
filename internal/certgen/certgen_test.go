package certgen

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestIssueServerCertificate_VerifiesAgainstCA(t *testing.T) {
	caCert, caKey, err := NewCA("ClassFeed Test CA", time.Hour)
	if err != nil {
		t.Fatalf("NewCA: %v", err)
	}
	if !caCert.IsCA {
		t.Fatal("expected a CA certificate")
	}

	certPEM, keyPEM, err := IssueServerCertificate([]string{"localhost", "127.0.0.1"}, time.Hour, caCert, caKey)
	if err != nil {
		t.Fatalf("IssueServerCertificate: %v", err)
	}
	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		t.Fatalf("X509KeyPair: %v", err)
	}
	leaf, err := x509.ParseCertificate(pair.Certificate[0])
	if err != nil {
		t.Fatal(err)
	}

	roots := x509.NewCertPool()
	roots.AddCert(caCert)
	for _, host := range []string{"localhost", "127.0.0.1"} {
		if _, err := leaf.Verify(x509.VerifyOptions{Roots: roots, DNSName: host}); err != nil {
			t.Errorf("verify %s: %v", host, err)
		}
	}
	if len(leaf.IPAddresses) != 1 || !leaf.IPAddresses[0].Equal(net.ParseIP("127.0.0.1")) {
		t.Errorf("unexpected IP SANs %v", leaf.IPAddresses)
	}
	if _, err := leaf.Verify(x509.VerifyOptions{Roots: roots, DNSName: "example.com"}); err == nil {
		t.Error("expected verification failure for a foreign host")
	}
}

func TestIssueServerCertificate_NoHosts(t *testing.T) {
	caCert, caKey, err := NewCA("ca", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := IssueServerCertificate(nil, time.Hour, caCert, caKey); err == nil {
		t.Error("expected error without hosts")
	}
}

func TestLoadCACredentials_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	caCert, caKey, err := NewCA("ca", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	keyPEM, err := EncodeKey(caKey)
	if err != nil {
		t.Fatal(err)
	}
	certPath := filepath.Join(dir, "ca.crt")
	keyPath := filepath.Join(dir, "ca.key")
	if err := os.WriteFile(certPath, EncodeCertificate(caCert.Raw), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		t.Fatal(err)
	}

	gotCert, gotKey, err := LoadCACredentials(certPath, keyPath)
	if err != nil {
		t.Fatalf("LoadCACredentials: %v", err)
	}
	if !gotCert.Equal(caCert) {
		t.Error("loaded certificate differs")
	}
	if _, _, err := IssueServerCertificate([]string{"localhost"}, time.Hour, gotCert, gotKey); err != nil {
		t.Errorf("loaded key cannot sign: %v", err)
	}
}

func TestLoadCACredentials_RSAKey(t *testing.T) {
	dir := t.TempDir()
	caCert, _, err := NewCA("ca", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	certPath := filepath.Join(dir, "ca.crt")
	keyPath := filepath.Join(dir, "ca.key")
	_ = os.WriteFile(certPath, EncodeCertificate(caCert.Raw), 0o600)
	_ = os.WriteFile(keyPath, pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(rsaKey)}), 0o600)

	if _, key, err := LoadCACredentials(certPath, keyPath); err != nil || key == nil {
		t.Errorf("LoadCACredentials RSA: %v", err)
	}
}

func TestLoadCACredentials_Errors(t *testing.T) {
	dir := t.TempDir()
	missing := filepath.Join(dir, "missing")
	if _, _, err := LoadCACredentials(missing, missing); err == nil || !strings.Contains(err.Error(), "read ca cert") {
		t.Errorf("expected read error, got %v", err)
	}

	notPEM := filepath.Join(dir, "bad.crt")
	_ = os.WriteFile(notPEM, []byte("garbage"), 0o600)
	if _, _, err := LoadCACredentials(notPEM, notPEM); err == nil {
		t.Error("expected error for non-PEM cert")
	}

	caCert, _, err := NewCA("ca", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	certPath := filepath.Join(dir, "ca.crt")
	_ = os.WriteFile(certPath, EncodeCertificate(caCert.Raw), 0o600)
	oddKey := filepath.Join(dir, "odd.key")
	_ = os.WriteFile(oddKey, pem.EncodeToMemory(&pem.Block{Type: "DSA PRIVATE KEY", Bytes: []byte{1}}), 0o600)
	if _, _, err := LoadCACredentials(certPath, oddKey); err == nil || !strings.Contains(err.Error(), "unsupported key type") {
		t.Errorf("expected unsupported key type, got %v", err)
	}
}
