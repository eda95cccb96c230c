package api

import (
	"crypto/tls"
	"fmt"

	"github.com/AaronLay10/StageEngine/internal/config"
)

// TLSConfig holds TLS certificate paths.
type TLSConfig struct {
	CertFile string
	KeyFile  string
}

// LoadTLSConfig reads STAGE_TLS_CERT and STAGE_TLS_KEY. It returns nil unless both are set.
func LoadTLSConfig() (*TLSConfig, error) {
	cert, err := config.ResolveSecret("STAGE_TLS_CERT")
	if err != nil {
		return nil, err
	}
	key, err := config.ResolveSecret("STAGE_TLS_KEY")
	if err != nil {
		return nil, err
	}
	if cert == "" || key == "" {
		return nil, nil
	}
	return &TLSConfig{CertFile: cert, KeyFile: key}, nil
}

// Enabled returns true if both paths are configured.
func (c *TLSConfig) Enabled() bool {
	return c != nil && c.CertFile != "" && c.KeyFile != ""
}

// Build loads the key pair into a tls.Config.
func (c *TLSConfig) Build() (*tls.Config, error) {
	if !c.Enabled() {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(c.CertFile, c.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}
