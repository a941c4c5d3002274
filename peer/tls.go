package peer

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"

	"google.golang.org/grpc/credentials"
)

var ErrInvalidCACert = errors.New("no certificate found in CA file")

// TLSConfig holds file paths of a mutually authenticated peer link.
type TLSConfig struct {
	Cert   string
	Key    string
	CaCert string
}

func (c *TLSConfig) load() (tls.Certificate, *x509.CertPool, error) {
	cert, err := tls.LoadX509KeyPair(c.Cert, c.Key)
	if err != nil {
		return tls.Certificate{}, nil, fmt.Errorf("failed to load certificate and key: %w", err)
	}
	caCert, err := os.ReadFile(c.CaCert)
	if err != nil {
		return tls.Certificate{}, nil, fmt.Errorf("failed to read CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caCert) {
		return tls.Certificate{}, nil, ErrInvalidCACert
	}
	return cert, pool, nil
}

func ClientCredentials(c *TLSConfig) (credentials.TransportCredentials, error) {
	cert, pool, err := c.load()
	if err != nil {
		return nil, err
	}
	return credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS12,
	}), nil
}

func ServerCredentials(c *TLSConfig) (credentials.TransportCredentials, error) {
	cert, pool, err := c.load()
	if err != nil {
		return nil, err
	}
	return credentials.NewTLS(&tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS12,
	}), nil
}
