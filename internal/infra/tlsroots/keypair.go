package tlsroots

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"
)

// KeyPair holds a server certificate that can be swapped while serving.
type KeyPair struct {
	certFile string
	keyFile  string
	logger   *slog.Logger

	mu       sync.RWMutex
	cert     *tls.Certificate
	notAfter time.Time
}

// LoadKeyPair loads certFile and keyFile.
func LoadKeyPair(certFile, keyFile string, logger *slog.Logger) (*KeyPair, error) {
	if logger == nil {
		logger = slog.Default()
	}
	kp := &KeyPair{certFile: certFile, keyFile: keyFile, logger: logger}
	if err := kp.Reload(); err != nil {
		return nil, fmt.Errorf("tlsroots: initial load: %w", err)
	}
	return kp, nil
}

// Reload re-reads the key pair. On failure the previous certificate stays
// in use.
func (kp *KeyPair) Reload() error {
	cert, err := tls.LoadX509KeyPair(kp.certFile, kp.keyFile)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}
	leaf, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		return fmt.Errorf("parse leaf: %w", err)
	}
	cert.Leaf = leaf

	kp.mu.Lock()
	kp.cert = &cert
	kp.notAfter = leaf.NotAfter
	kp.mu.Unlock()

	kp.logger.Info("tls certificate loaded",
		"cert_file", kp.certFile,
		"subject", leaf.Subject.CommonName,
		"not_after", leaf.NotAfter.UTC().Format(time.RFC3339))
	return nil
}

// Owns reports whether path is the certificate or key file.
func (kp *KeyPair) Owns(path string) bool {
	clean := filepath.Clean(path)
	return clean == filepath.Clean(kp.certFile) || clean == filepath.Clean(kp.keyFile)
}

// NotAfter returns the expiry of the current certificate.
func (kp *KeyPair) NotAfter() time.Time {
	kp.mu.RLock()
	defer kp.mu.RUnlock()
	return kp.notAfter
}

// GetCertificate implements tls.Config.GetCertificate.
func (kp *KeyPair) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	kp.mu.RLock()
	defer kp.mu.RUnlock()
	return kp.cert, nil
}

// ServerTLSConfig returns a server config that always presents the
// current certificate.
func (kp *KeyPair) ServerTLSConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: kp.GetCertificate,
		MinVersion:     tls.VersionTLS12,
	}
}
