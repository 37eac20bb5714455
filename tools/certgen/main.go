// Package main generates a development Certificate Authority and a server
// certificate under the "certs" directory, for running the ClassFeed server
// with -tls-cert/-tls-key and the client with -ca.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atinyakov/ClassFeed/internal/certgen"
)

func main() {
	dir := flag.String("dir", "certs", "output directory")
	hosts := flag.String("hosts", "localhost,127.0.0.1", "comma separated server host names and IPs")
	flag.Parse()

	if err := run(*dir, splitHosts(*hosts)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("Certificates generated into ./%s\n", *dir)
}

// run writes ca.crt/ca.key (reusing an existing CA) and server.crt/server.key.
func run(dir string, hosts []string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	caCertPath := filepath.Join(dir, "ca.crt")
	caKeyPath := filepath.Join(dir, "ca.key")

	caCert, caKey, err := certgen.LoadCACredentials(caCertPath, caKeyPath)
	if errors.Is(err, os.ErrNotExist) {
		cert, key, genErr := certgen.NewCA("ClassFeed CA", 10*365*24*time.Hour)
		if genErr != nil {
			return genErr
		}
		keyPEM, genErr := certgen.EncodeKey(key)
		if genErr != nil {
			return genErr
		}
		if genErr := writeFiles(caCertPath, certgen.EncodeCertificate(cert.Raw), caKeyPath, keyPEM); genErr != nil {
			return genErr
		}
		caCert, caKey, err = cert, key, nil
	}
	if err != nil {
		return err
	}

	certPEM, keyPEM, err := certgen.IssueServerCertificate(hosts, 365*24*time.Hour, caCert, caKey)
	if err != nil {
		return err
	}
	return writeFiles(filepath.Join(dir, "server.crt"), certPEM, filepath.Join(dir, "server.key"), keyPEM)
}

func writeFiles(certPath string, certPEM []byte, keyPath string, keyPEM []byte) error {
	if err := os.WriteFile(certPath, certPEM, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", certPath, err)
	}
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", keyPath, err)
	}
	return nil
}

func splitHosts(s string) []string {
	var out []string
	for _, h := range strings.Split(s, ",") {
		if h = strings.TrimSpace(h); h != "" {
			out = append(out, h)
		}
	}
	return out
}
