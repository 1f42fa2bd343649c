package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("RPC_URL", "https://rpc.example")
	t.Setenv("FREAKY_ADDRESS", "0x2608f724dec63dEa893BC5380FF0e77E5C446480")
	t.Setenv("PRIVATE_KEY", "0x"+"11"+"22"+"33")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "3000", cfg.Port)
	require.Equal(t, "Australia/Sydney", cfg.Timezone)
	require.Equal(t, 30*time.Second, cfg.PollInterval)
	require.Equal(t, time.Hour, cfg.ModeSyncInterval)
	require.True(t, cfg.ValidateToken)
	require.False(t, cfg.RelayRefund)
}

func TestLoad_MissingRequiredListsAll(t *testing.T) {
	t.Setenv("RPC_URL", "")
	t.Setenv("RPC", "")
	t.Setenv("FREAKY_ADDRESS", "")
	t.Setenv("FREAKY_CONTRACT", "")
	t.Setenv("PRIVATE_KEY", "")
	t.Setenv("RELAYER_PK", "")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "RPC_URL")
	require.Contains(t, err.Error(), "FREAKY_ADDRESS|FREAKY_CONTRACT")
	require.Contains(t, err.Error(), "PRIVATE_KEY|RELAYER_PK")
}

func TestLoad_LegacyAliases(t *testing.T) {
	t.Setenv("RPC", "https://rpc.legacy")
	t.Setenv("FREAKY_CONTRACT", "0x2608f724dec63dEa893BC5380FF0e77E5C446480")
	t.Setenv("RELAYER_PK", "abcdef")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://rpc.legacy", cfg.RPCURL)
	require.Equal(t, "0x2608f724dec63dEa893BC5380FF0e77E5C446480", cfg.GameAddress)
	require.Equal(t, "0xabcdef", cfg.PrivateKey)
}

func TestLoad_PrimaryNamesWinOverAliases(t *testing.T) {
	setRequired(t)
	t.Setenv("RPC", "https://rpc.legacy")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, "https://rpc.example", cfg.RPCURL)
}

func TestNormalizeKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in, want string
	}{
		{"abc123", "0xabc123"},
		{"0xabc123", "0xabc123"},
		{`"0xabc123"`, "0xabc123"},
		{"'abc123'", "0xabc123"},
		{"  0xabc123  ", "0xabc123"},
		{`" abc123 "`, "0xabc123"},
		{"", ""},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, NormalizeKey(tc.in), "input %q", tc.in)
	}
}

func TestLoad_YAMLFileWithEnvOverride(t *testing.T) {
	setRequired(t)

	path := filepath.Join(t.TempDir(), "relayer.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"port: \"8080\"\ntimezone: UTC\npoll_interval: 10s\narm_after_close: true\n",
	), 0o600))
	t.Setenv("RELAYER_CONFIG", path)
	t.Setenv("PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	// Env beats file; file beats defaults.
	require.Equal(t, "9090", cfg.Port)
	require.Equal(t, "UTC", cfg.Timezone)
	require.Equal(t, 10*time.Second, cfg.PollInterval)
	require.True(t, cfg.ArmAfterClose)
}

func TestLoad_InvalidTimezone(t *testing.T) {
	setRequired(t)
	t.Setenv("TIMEZONE", "Not/AZone")

	_, err := Load()
	require.Error(t, err)
	require.Contains(t, err.Error(), "TIMEZONE")
}

func TestEnvBoolAndDuration(t *testing.T) {
	setRequired(t)
	t.Setenv("RELAY_REFUND", "yes")
	t.Setenv("VALIDATE_TOKEN", "off")
	t.Setenv("POLL_INTERVAL", "45s")
	t.Setenv("MODE_SYNC_INTERVAL", "bogus")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.RelayRefund)
	require.False(t, cfg.ValidateToken)
	require.Equal(t, 45*time.Second, cfg.PollInterval)
	require.Equal(t, time.Hour, cfg.ModeSyncInterval, "invalid duration falls back to default")
}
