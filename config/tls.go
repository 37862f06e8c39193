package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"path/filepath"
)

// LoadServerTLS builds a server tls.Config requiring and verifying client
// certificates against the committee CA, for the validator RPC listener.
func LoadServerTLS(dir, nodeID string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(filepath.Join(dir, nodeID+".crt"), filepath.Join(dir, nodeID+".key"))
	if err != nil {
		return nil, fmt.Errorf("load node cert/key: %w", err)
	}
	pool, err := loadCAPool(dir)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// LoadClientTLS builds a client tls.Config presenting this node's
// certificate and trusting only the committee CA.
func LoadClientTLS(dir, nodeID string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(filepath.Join(dir, nodeID+".crt"), filepath.Join(dir, nodeID+".key"))
	if err != nil {
		return nil, fmt.Errorf("load node cert/key: %w", err)
	}
	pool, err := loadCAPool(dir)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS13,
	}, nil
}

func loadCAPool(dir string) (*x509.CertPool, error) {
	caPEM, err := os.ReadFile(filepath.Join(dir, "ca.crt"))
	if err != nil {
		return nil, fmt.Errorf("read ca.crt: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("ca.crt does not contain a valid certificate")
	}
	return pool, nil
}
