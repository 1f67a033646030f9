package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTOML = `
[rpc]
interface = "0.0.0.0"
port = 9090
server_threads = 8
processing_threads = 8
db_path = "/var/lib/txrelay"
submit_earlier = 2

[verification]
chain_id = 1337
max_gas = 8000000
min_gas_price = 1
min_schedule_block = 2
max_schedule_block = 1000
min_schedule_seconds = 2
max_schedule_seconds = 1000
strict_nonce = true
max_txs_per_sender = 16
certifier = "0x00000000000000000000000000000000001234"

[nodes]
blockchain = "http://localhost:8545"
transactions = ["http://localhost:8545", "http://localhost:8546"]
`

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "relay.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadParsesAllTables(t *testing.T) {
	path := writeTempConfig(t, sampleTOML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.RPC.Interface)
	assert.Equal(t, 9090, cfg.RPC.Port)
	assert.EqualValues(t, 2, cfg.RPC.SubmitEarlier)
	assert.EqualValues(t, 1337, cfg.Verification.ChainID)
	assert.True(t, cfg.Verification.StrictNonce)
	assert.Equal(t, []string{"http://localhost:8545", "http://localhost:8546"}, cfg.Nodes.Transactions)
}

func TestLoadRejectsMissingUpstreamSinks(t *testing.T) {
	path := writeTempConfig(t, `
[nodes]
blockchain = "http://localhost:8545"
transactions = []
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsInvertedScheduleWindow(t *testing.T) {
	path := writeTempConfig(t, `
[verification]
min_schedule_block = 100
max_schedule_block = 10

[nodes]
blockchain = "http://localhost:8545"
transactions = ["http://localhost:8545"]
`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestDefaultDataDirIsNonEmptyWhenHomeIsSet(t *testing.T) {
	t.Setenv("HOME", "/home/relay")
	assert.NotEmpty(t, DefaultDataDir())
}
