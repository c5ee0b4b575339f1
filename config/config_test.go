package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	content := `
[server]
listen_addr = "0.0.0.0:9000"
log_json = true

[ledger]
rpc_url = "http://geth:8545"
credential_contract = "0x1111111111111111111111111111111111111111"
record_contract = "0x2222222222222222222222222222222222222222"
chain_id = 1337

[storage]
content_uri = "file:///var/lib/backend/content"

[auth]
token_secret = "s3cret"
token_expiration = "12h"
`
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.ListenAddr)
	assert.True(t, cfg.Server.LogJSON)
	assert.Equal(t, "http://geth:8545", cfg.Ledger.RPCURL)
	assert.Equal(t, int64(1337), cfg.Ledger.ChainID)
	assert.Equal(t, "file:///var/lib/backend/content", cfg.Storage.ContentURI)

	// Defaults applied to unset fields.
	assert.Equal(t, "data/backend.db", cfg.Storage.DBPath)
	assert.Equal(t, "5m", cfg.Auth.ChallengeTTL)

	exp, err := cfg.Auth.TokenExpirationDuration()
	require.NoError(t, err)
	assert.Equal(t, 12*time.Hour, exp)

	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token_secret")

	cfg.Auth.TokenSecret = "s"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contract")

	cfg.Ledger.CredentialContract = "0x1111111111111111111111111111111111111111"
	cfg.Ledger.RecordContract = "0x2222222222222222222222222222222222222222"
	assert.NoError(t, cfg.Validate())

	cfg.Auth.ChallengeTTL = "not-a-duration"
	assert.Error(t, cfg.Validate())
}
