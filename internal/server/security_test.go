package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dtroode/authkeeper-server/internal/config"
)

// writeKeyPair writes a self-signed certificate for 127.0.0.1 into dir.
func writeKeyPair(t *testing.T, dir string) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{Organization: []string{"authkeeper"}},
		NotBefore:    time.Now().Add(-time.Minute),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1)},
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)

	certFile = filepath.Join(dir, "server.crt")
	keyFile = filepath.Join(dir, "server.key")
	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certFile, keyFile
}

func TestTLSListener_Listen(t *testing.T) {
	certFile, keyFile := writeKeyPair(t, t.TempDir())

	tests := []struct {
		name     string
		cert     string
		key      string
		protocol string
		addr     string
		wantErr  string
	}{
		{name: "ok", cert: certFile, key: keyFile, protocol: "tcp", addr: "127.0.0.1:0"},
		{name: "missing certificate", cert: "missing.crt", key: "missing.key", protocol: "tcp", addr: "127.0.0.1:0", wantErr: "failed to load TLS certificate"},
		{name: "bad address", cert: certFile, key: keyFile, protocol: "tcp", addr: "invalid-address", wantErr: "invalid-address"},
		{name: "unknown protocol", cert: certFile, key: keyFile, protocol: "unknown-net", addr: "127.0.0.1:0", wantErr: "unknown-net"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ln, err := NewTLSListener(tt.cert, tt.key).Listen(tt.protocol, tt.addr)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer ln.Close()
			assert.Equal(t, "tcp", ln.Addr().Network())
		})
	}
}

func TestTLSListener_RejectsOldTLS(t *testing.T) {
	certFile, keyFile := writeKeyPair(t, t.TempDir())

	ln, err := NewTLSListener(certFile, keyFile).Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_ = conn.(*tls.Conn).Handshake()
		_ = conn.Close()
	}()

	_, err = tls.Dial("tcp", ln.Addr().String(), &tls.Config{
		InsecureSkipVerify: true, //nolint:gosec // self-signed test certificate
		MaxVersion:         tls.VersionTLS11,
	})
	assert.Error(t, err)
}

func TestPlainListener_Listen(t *testing.T) {
	ln, err := NewPlainListener().Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	assert.IsType(t, &net.TCPListener{}, ln)

	_, err = NewPlainListener().Listen("tcp", "invalid-address")
	assert.Error(t, err)

	_, err = NewPlainListener().Listen("unknown-net", "127.0.0.1:0")
	assert.Error(t, err)
}

func TestNewSecurityLayer(t *testing.T) {
	assert.IsType(t, &PlainListener{}, NewSecurityLayer(config.HTTP{}))

	layer := NewSecurityLayer(config.HTTP{
		EnableHTTPS:        true,
		CertFileName:       "server.crt",
		PrivateKeyFileName: "server.key",
	})
	require.IsType(t, &TLSListener{}, layer)
	assert.Equal(t, "server.crt", layer.(*TLSListener).certFileName)
	assert.Equal(t, "server.key", layer.(*TLSListener).privateKeyFileName)
}
