package webserver

import (
	"context"
	"crypto/tls"
	"log"
	"os"
	"sync"
	"time"
)

// TLSReloader serves the current certificate and picks up renewed files
// without a restart.
type TLSReloader struct {
	certFile string
	keyFile  string

	mu      sync.RWMutex
	cert    *tls.Certificate
	certMod time.Time
	keyMod  time.Time
}

func NewTLSReloader(certFile, keyFile string) (*TLSReloader, error) {
	r := &TLSReloader{certFile: certFile, keyFile: keyFile}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *TLSReloader) reload() error {
	cert, err := tls.LoadX509KeyPair(r.certFile, r.keyFile)
	if err != nil {
		return err
	}
	certMod, keyMod := modTime(r.certFile), modTime(r.keyFile)

	r.mu.Lock()
	r.cert = &cert
	r.certMod, r.keyMod = certMod, keyMod
	r.mu.Unlock()

	log.Printf("TLS certificates reloaded")
	return nil
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// changed reports whether either file is newer than the loaded pair.
func (r *TLSReloader) changed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return modTime(r.certFile).After(r.certMod) || modTime(r.keyFile).After(r.keyMod)
}

// Watch polls the files every interval until ctx is done.
func (r *TLSReloader) Watch(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !r.changed() {
				continue
			}
			log.Printf("Certificate files changed, reloading...")
			if err := r.reload(); err != nil {
				log.Printf("Failed to reload certificates: %v", err)
			}
		}
	}
}

func (r *TLSReloader) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cert, nil
}

func (r *TLSReloader) GetConfig() *tls.Config {
	return &tls.Config{
		GetCertificate: r.GetCertificate,
		MinVersion:     tls.VersionTLS12,
		CipherSuites: []uint16{
			tls.TLS_ECDHE_RSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256,
			tls.TLS_ECDHE_ECDSA_WITH_AES_256_GCM_SHA384,
			tls.TLS_ECDHE_ECDSA_WITH_AES_128_GCM_SHA256,
		},
	}
}
