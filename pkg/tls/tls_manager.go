// Package tls prepares the HTTPS side of the server: manual certificates,
// Let's Encrypt via autocert, or a generated self-signed pair for
// development.
package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/acme"
	"golang.org/x/crypto/acme/autocert"

	"github.com/antibyte/retroturtle/pkg/configuration"
	"github.com/antibyte/retroturtle/pkg/logger"
)

// Certificate sources.
const (
	ModeManual     = "manual"
	ModeAutocert   = "autocert"
	ModeSelfSigned = "self-signed"
)

const letsEncryptStaging = "https://acme-staging-v02.api.letsencrypt.org/directory"

// Config is the [TLS] section.
type Config struct {
	Enabled      bool
	Mode         string
	CertFile     string
	KeyFile      string
	Domain       string
	Email        string
	CacheDir     string
	HTTPSPort    string
	HTTPRedirect bool
	Staging      bool
	MinVersion   string
}

// LoadConfig reads the [TLS] section.
func LoadConfig() Config {
	return Config{
		Enabled:      configuration.GetBool("TLS", "enabled", false),
		Mode:         strings.ToLower(configuration.GetString("TLS", "mode", ModeManual)),
		CertFile:     configuration.GetString("TLS", "cert_file", "certs/server.crt"),
		KeyFile:      configuration.GetString("TLS", "key_file", "certs/server.key"),
		Domain:       configuration.GetString("TLS", "domain", ""),
		Email:        configuration.GetString("TLS", "email", ""),
		CacheDir:     configuration.GetString("TLS", "cache_dir", "certs/autocert"),
		HTTPSPort:    configuration.GetString("TLS", "https_port", "443"),
		HTTPRedirect: configuration.GetBool("TLS", "http_redirect", true),
		Staging:      configuration.GetBool("TLS", "staging", false),
		MinVersion:   configuration.GetString("TLS", "min_tls_version", "1.2"),
	}
}

// Manager owns the server's tls.Config.
type Manager struct {
	config      Config
	autocertMgr *autocert.Manager
	tlsConfig   *tls.Config
}

// NewManager validates cfg and prepares certificates. With TLS disabled it
// returns an inert manager.
func NewManager(cfg Config) (*Manager, error) {
	m := &Manager{config: cfg}
	if !cfg.Enabled {
		return m, nil
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("TLS configuration validation failed: %w", err)
	}

	minVersion, err := parseMinVersion(cfg.MinVersion)
	if err != nil {
		return nil, err
	}

	switch cfg.Mode {
	case ModeAutocert:
		err = m.initAutocert(minVersion)
	case ModeSelfSigned:
		if _, statErr := os.Stat(cfg.CertFile); os.IsNotExist(statErr) {
			if err = GenerateSelfSigned(cfg.CertFile, cfg.KeyFile, hostsFor(cfg.Domain), 365*24*time.Hour); err != nil {
				break
			}
		}
		err = m.initFiles(minVersion)
	default:
		err = m.initFiles(minVersion)
	}
	if err != nil {
		return nil, fmt.Errorf("TLS initialization failed: %w", err)
	}
	return m, nil
}

func (c Config) validate() error {
	switch c.Mode {
	case ModeAutocert:
		if strings.TrimSpace(c.Domain) == "" {
			return errors.New("domain is required in autocert mode")
		}
		if strings.TrimSpace(c.Email) == "" {
			return errors.New("email is required in autocert mode")
		}
		if strings.HasSuffix(c.Domain, "example.com") {
			logger.SecurityWarn("Using example domain - change this in production!")
		}
	case ModeManual, ModeSelfSigned:
		if c.CertFile == "" || c.KeyFile == "" {
			return errors.New("cert_file and key_file are required")
		}
	default:
		return fmt.Errorf("unknown TLS mode %q", c.Mode)
	}
	return nil
}

func parseMinVersion(v string) (uint16, error) {
	switch strings.TrimSpace(v) {
	case "", "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	}
	return 0, fmt.Errorf("unsupported min_tls_version %q", v)
}

func (m *Manager) initAutocert(minVersion uint16) error {
	cfg := m.config
	logger.Info(logger.AreaSecurity, "Initializing Let's Encrypt for domain: %s", cfg.Domain)

	if err := os.MkdirAll(cfg.CacheDir, 0700); err != nil {
		return fmt.Errorf("failed to create certificate cache directory: %w", err)
	}

	m.autocertMgr = &autocert.Manager{
		Cache:      autocert.DirCache(cfg.CacheDir),
		Prompt:     autocert.AcceptTOS,
		Email:      cfg.Email,
		HostPolicy: autocert.HostWhitelist(hostsFor(cfg.Domain)...),
	}
	if cfg.Staging {
		m.autocertMgr.Client = &acme.Client{DirectoryURL: letsEncryptStaging}
		logger.SecurityWarn("Using the Let's Encrypt staging directory")
	}

	m.tlsConfig = &tls.Config{
		GetCertificate: func(hello *tls.ClientHelloInfo) (*tls.Certificate, error) {
			if hello.ServerName == "" {
				hello.ServerName = cfg.Domain
			}
			cert, err := m.autocertMgr.GetCertificate(hello)
			if err != nil {
				logger.SecurityWarn("Failed to get certificate for %s: %v", hello.ServerName, err)
				return nil, err
			}
			logger.Debug(logger.AreaSecurity, "Provided certificate for: %s", hello.ServerName)
			return cert, nil
		},
		NextProtos: []string{"h2", "http/1.1", acme.ALPNProto},
		MinVersion: minVersion,
	}
	return nil
}

func (m *Manager) initFiles(minVersion uint16) error {
	logger.Info(logger.AreaSecurity, "Loading TLS certificate %s", m.config.CertFile)
	cert, err := tls.LoadX509KeyPair(m.config.CertFile, m.config.KeyFile)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}
	m.tlsConfig = &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"h2", "http/1.1"},
		MinVersion:   minVersion,
	}
	return nil
}

// hostsFor returns domain and its www alias, or localhost names when no
// domain is set.
func hostsFor(domain string) []string {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return []string{"localhost", "127.0.0.1"}
	}
	if strings.HasPrefix(domain, "www.") {
		return []string{domain}
	}
	return []string{domain, "www." + domain}
}

// Enabled reports whether the server should serve HTTPS.
func (m *Manager) Enabled() bool {
	return m.config.Enabled && m.tlsConfig != nil
}

// TLSConfig returns the config for http.Server, or nil when disabled.
func (m *Manager) TLSConfig() *tls.Config {
	if !m.Enabled() {
		return nil
	}
	return m.tlsConfig
}

// HTTPSPort returns the configured HTTPS port.
func (m *Manager) HTTPSPort() string {
	return m.config.HTTPSPort
}

// NeedsHTTPServer reports whether a plain HTTP listener must run next to
// HTTPS, for ACME challenges or redirects.
func (m *Manager) NeedsHTTPServer() bool {
	return m.Enabled() && (m.autocertMgr != nil || m.config.HTTPRedirect)
}

// HTTPHandler serves the plain HTTP listener: ACME challenges in autocert
// mode, and otherwise a redirect to HTTPS when enabled or fallback.
func (m *Manager) HTTPHandler(fallback http.Handler) http.Handler {
	next := fallback
	if m.config.HTTPRedirect {
		next = m.redirectHandler()
	}
	if m.autocertMgr != nil {
		return m.autocertMgr.HTTPHandler(next)
	}
	return next
}

func (m *Manager) redirectHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}

		target := "https://" + host
		if m.config.HTTPSPort != "" && m.config.HTTPSPort != "443" {
			target = "https://" + net.JoinHostPort(host, m.config.HTTPSPort)
		}
		target += r.URL.RequestURI()

		logger.Debug(logger.AreaSecurity, "Redirecting HTTP to HTTPS: %s -> %s", r.URL.String(), target)
		http.Redirect(w, r, target, http.StatusMovedPermanently)
	})
}

// GenerateSelfSigned writes a PEM certificate and key valid for hosts.
func GenerateSelfSigned(certFile, keyFile string, hosts []string, validFor time.Duration) error {
	logger.Info(logger.AreaSecurity, "Generating self-signed certificate for %v", hosts)

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return fmt.Errorf("generate serial: %w", err)
	}

	now := time.Now()
	template := x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{Organization: []string{"RetroTurtle development"}},
		NotBefore:             now.Add(-time.Hour),
		NotAfter:              now.Add(validFor),
		KeyUsage:              x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	for _, h := range hosts {
		if ip := net.ParseIP(h); ip != nil {
			template.IPAddresses = append(template.IPAddresses, ip)
		} else {
			template.DNSNames = append(template.DNSNames, h)
		}
	}

	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	keyDER, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return fmt.Errorf("marshal key: %w", err)
	}

	if err := writePEM(certFile, "CERTIFICATE", der, 0644); err != nil {
		return err
	}
	return writePEM(keyFile, "EC PRIVATE KEY", keyDER, 0600)
}

func writePEM(path, blockType string, der []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if err := pem.Encode(f, &pem.Block{Type: blockType, Bytes: der}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
