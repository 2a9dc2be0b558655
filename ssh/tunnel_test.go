package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"

	"github.com/DachengChen/nlsql/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
)

func writeKey(t *testing.T, passphrase string) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var block *pem.Block
	if passphrase == "" {
		block, err = ssh.MarshalPrivateKey(priv, "test")
	} else {
		block, err = ssh.MarshalPrivateKeyWithPassphrase(priv, "test", []byte(passphrase))
	}
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id_ed25519")
	require.NoError(t, os.WriteFile(path, pem.EncodeToMemory(block), 0o600))
	return path
}

func TestBuildAuthMethods(t *testing.T) {
	_, err := buildAuthMethods(config.SSHConfig{})
	assert.ErrorContains(t, err, "no SSH authentication methods")

	_, err = buildAuthMethods(config.SSHConfig{KeyPath: filepath.Join(t.TempDir(), "missing")})
	assert.ErrorContains(t, err, "read ssh key")

	methods, err := buildAuthMethods(config.SSHConfig{KeyPath: writeKey(t, "")})
	require.NoError(t, err)
	assert.Len(t, methods, 1)

	withPass := writeKey(t, "s3cret")
	_, err = buildAuthMethods(config.SSHConfig{KeyPath: withPass, KeyPassphrase: "s3cret"})
	require.NoError(t, err)
	_, err = buildAuthMethods(config.SSHConfig{KeyPath: withPass})
	assert.ErrorContains(t, err, "parse ssh key")
}

func TestNewTunnel(t *testing.T) {
	tun, err := NewTunnel(config.SSHConfig{Host: "bastion", Port: 2222, User: "ops", KeyPath: writeKey(t, "")}, "10.0.0.5:8000")
	require.NoError(t, err)
	assert.Equal(t, "bastion:2222", tun.sshAddr)
	assert.Equal(t, "10.0.0.5:8000", tun.remoteAddr)
	tun.Stop()
	tun.Stop()

	_, err = NewTunnel(config.SSHConfig{KeyPath: writeKey(t, ""), KnownHostsPath: filepath.Join(t.TempDir(), "nope")}, "x:1")
	assert.ErrorContains(t, err, "known hosts")
}

func TestRemoteAddr(t *testing.T) {
	tests := map[string]string{
		"http://10.0.0.5:8000":      "10.0.0.5:8000",
		"http://backend":            "backend:80",
		"https://backend/api":       "backend:443",
		"http://[fd00::1]:8000/x/y": "[fd00::1]:8000",
	}
	for in, want := range tests {
		got, err := RemoteAddr(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}

func TestForwardURL(t *testing.T) {
	got, err := ForwardURL("https://backend:8443/api", &Addr{Host: "127.0.0.1", Port: 40123})
	require.NoError(t, err)
	assert.Equal(t, "https://127.0.0.1:40123/api", got)
}
