// Package certs provides a tls.Config whose certificate follows changes of
// the underlying files.
package certs

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/mpapenbr/lapviewer-go/log"
	"github.com/mpapenbr/lapviewer-go/pkg/utils/certs/traefik"
	"github.com/mpapenbr/lapviewer-go/pkg/utils/filewatch"
)

var ErrNoCertificate = errors.New("no certificate configured")

// Files names the sources of the server certificate. A traefik acme file
// takes precedence over CertFile/KeyFile.
type Files struct {
	CertFile      string
	KeyFile       string
	CAFile        string
	TraefikCerts  string
	TraefikDomain string
}

func (f Files) Configured() bool {
	return (f.TraefikCerts != "" && f.TraefikDomain != "") ||
		(f.CertFile != "" && f.KeyFile != "")
}

type certs struct {
	files Files
	l     *log.Logger
	cert  *tls.Certificate
	mu    sync.RWMutex
}

// NewTLSConfig loads the certificate and reloads it whenever one of the files
// changes until ctx is done.
func NewTLSConfig(ctx context.Context, files Files) (*tls.Config, error) {
	if !files.Configured() {
		return nil, ErrNoCertificate
	}
	c := &certs{
		files: files,
		l:     log.GetFromContext(ctx).Named("certs"),
	}
	if err := c.loadCert(); err != nil {
		return nil, err
	}
	ret := &tls.Config{
		GetCertificate: func(chi *tls.ClientHelloInfo) (*tls.Certificate, error) {
			c.mu.RLock()
			defer c.mu.RUnlock()
			return c.cert, nil
		},
		MinVersion: tls.VersionTLS13,
	}
	if files.CAFile != "" {
		c.l.Info("Loading ca cert", log.String("file", files.CAFile))
		caCert, err := os.ReadFile(files.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read TLS root CA: %w", err)
		}
		caCertPool := x509.NewCertPool()
		if ok := caCertPool.AppendCertsFromPEM(caCert); !ok {
			return nil, fmt.Errorf("no certificates in %s", files.CAFile)
		}
		ret.ClientCAs = caCertPool
		ret.ClientAuth = tls.VerifyClientCertIfGiven
	}
	go func() {
		//nolint:errcheck // errors are logged by Watch
		filewatch.Watch(ctx, c.l, func(name string) {
			c.l.Info("cert file changed, reloading cert", log.String("file", name))
			if err := c.loadCert(); err != nil {
				c.l.Error("could not reload cert", log.ErrorField(err))
			}
		}, files.CertFile, files.KeyFile, files.TraefikCerts)
	}()
	return ret, nil
}

func (c *certs) loadCert() error {
	var (
		cert tls.Certificate
		err  error
	)
	if c.files.TraefikCerts != "" && c.files.TraefikDomain != "" {
		c.l.Info("Looking up traefik certs",
			log.String("file", c.files.TraefikCerts),
			log.String("domain", c.files.TraefikDomain))
		cert, err = traefik.GetCertFromTraefik(c.files.TraefikCerts, c.files.TraefikDomain)
	} else {
		c.l.Info("Loading cert",
			log.String("key", c.files.KeyFile),
			log.String("cert", c.files.CertFile))
		cert, err = tls.LoadX509KeyPair(c.files.CertFile, c.files.KeyFile)
	}
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cert = &cert
	return nil
}
