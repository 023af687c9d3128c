package cmd

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-stcp/stcp/lib/config"
	"github.com/go-stcp/stcp/lib/util/signals"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func writeConfig(t *testing.T, cipherName string) string {
	t.Helper()
	viper.Reset()
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "transport:\n" +
		"  listen_address: 127.0.0.1:0\n" +
		"cipher:\n" +
		"  name: " + cipherName + "\n" +
		"  key_hex: " + testKey + "\n" +
		"  digest: blake2b256\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	config.CfgFile = path
	t.Cleanup(func() {
		config.CfgFile = ""
		viper.Reset()
	})
	return path
}

func startServe(t *testing.T) (net.Addr, context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	addrs := make(chan net.Addr, 1)
	done := make(chan error, 1)
	go func() { done <- serve(ctx, func(a net.Addr) { addrs <- a }) }()
	select {
	case addr := <-addrs:
		return addr, cancel, done
	case err := <-done:
		cancel()
		t.Fatalf("serve failed: %v", err)
	case <-time.After(3 * time.Second):
		cancel()
		t.Fatal("serve did not start")
	}
	return nil, cancel, done
}

func stopServe(t *testing.T, cancel context.CancelFunc, done <-chan error) {
	t.Helper()
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("serve did not stop")
	}
}

func TestServeAndConnect(t *testing.T) {
	for _, overlay := range []bool{false, true} {
		name := "direct"
		if overlay {
			name = "overlay"
		}
		t.Run(name, func(t *testing.T) {
			writeConfig(t, "ChaCha20")
			config.InitConfig()
			serveOverlayFlag = overlay
			t.Cleanup(func() { serveOverlayFlag = false })

			addr, cancel, done := startServe(t)
			ctx, stop := context.WithTimeout(context.Background(), 5*time.Second)
			defer stop()

			var out bytes.Buffer
			err := connect(ctx, config.CurrentConfig(), addr.String(), strings.NewReader("hello\nworld\n"), &out)
			require.NoError(t, err)
			assert.Equal(t, "hello\nworld\n", out.String())

			stopServe(t, cancel, done)
		})
	}
}

func TestConnectWrongKeyTimesOut(t *testing.T) {
	writeConfig(t, "AES-CTR")
	config.InitConfig()
	addr, cancel, done := startServe(t)
	defer stopServe(t, cancel, done)

	cfg := config.CurrentConfig()
	cfg.Cipher.KeyHex = strings.Repeat("ff", 32)
	cfg.Transport.RecvTimeout = 200 * time.Millisecond

	// The server drops every packet it can not authenticate, so no reply
	// ever comes back.
	var out bytes.Buffer
	err := connect(context.Background(), cfg, addr.String(), strings.NewReader("hello\n"), &out)
	assert.Error(t, err)
	assert.Empty(t, out.String())
}

func TestConfigCommandRedactsKey(t *testing.T) {
	path := writeConfig(t, "ChaCha20")

	var out bytes.Buffer
	root := RootCmd()
	root.SetOut(&out)
	root.SetArgs([]string{"config", "--config", path})
	require.NoError(t, root.Execute())

	assert.Contains(t, out.String(), "name: ChaCha20")
	assert.Contains(t, out.String(), "<redacted>")
	assert.NotContains(t, out.String(), testKey)
}

func TestFlagsOverrideConfig(t *testing.T) {
	path := writeConfig(t, "ChaCha20")

	root := RootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"config", "--config", path, "--cipher", "AES-CBC", "--recv-timeout", "3s"})
	require.NoError(t, root.Execute())

	cfg := config.CurrentConfig()
	assert.Equal(t, "AES-CBC", cfg.Cipher.Name)
	assert.Equal(t, 3*time.Second, cfg.Transport.RecvTimeout)
	assert.Equal(t, testKey, cfg.Cipher.KeyHex, "unset flags leave the file value")
}

func TestInterruptCancelsCommandContext(t *testing.T) {
	ctx, cancel := interruptContext(context.Background())
	defer cancel()
	require.NoError(t, ctx.Err())

	signals.Dispatch(signals.Interrupt)
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}
