package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"stablemint/crypto"
)

func testAddress(t *testing.T) string {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key.PubKey().Address().String()
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadCreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":8546" {
		t.Fatalf("unexpected rpc address %q", cfg.RPCAddress)
	}
	if cfg.DataDir != "./stablemint-data" {
		t.Fatalf("unexpected data dir %q", cfg.DataDir)
	}
	if cfg.RPCRatePerSec != 50 || cfg.RPCBurst != 100 {
		t.Fatalf("unexpected rate limits %v/%v", cfg.RPCRatePerSec, cfg.RPCBurst)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("default file not written: %v", err)
	}

	// Loading the written default again must round trip.
	again, err := Load(path)
	if err == nil {
		t.Fatalf("expected validation failure without admin address, got %+v", again)
	}
}

func TestLoadFullConfig(t *testing.T) {
	admin := testAddress(t)
	reserve := testAddress(t)
	oracleAddr := testAddress(t)

	body := fmt.Sprintf(`
RPCAddress = ":9000"
DataDir = "/tmp/mintdata"
AuthToken = "secret"
RPCRatePerSec = 25.0
RPCBurst = 40

[log]
Service = "stablemintd"
Environment = "staging"
File = "/var/log/stablemintd.log"
MaxSizeMB = 64

[oracle]
Enabled = true
ConfigFile = "oracle.yaml"
KeyFile = "oracle.key"

[vault]
AdminAddress = %q
ReserveAddress = %q
Oracles = [%q]
Paused = ["vault.liquidate"]

[[vault.collateral]]
Code = "BTC"
LiquidationRatio = 1500000
LiquidationPenalty = 130000
StabilityFee = 20000
DebtCeiling = "1000000000000"
MinVaultDebt = "100000"
AdapterName = "bank"
`, admin, reserve, oracleAddr)

	cfg, err := Load(writeConfig(t, body))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCAddress != ":9000" || cfg.AuthToken != "secret" {
		t.Fatalf("unexpected server settings %+v", cfg)
	}
	if cfg.RPCRatePerSec != 25 || cfg.RPCBurst != 40 {
		t.Fatalf("unexpected rate limits %v/%v", cfg.RPCRatePerSec, cfg.RPCBurst)
	}
	if cfg.Log.Environment != "staging" || cfg.Log.FileOptions().Path != "/var/log/stablemintd.log" {
		t.Fatalf("unexpected log settings %+v", cfg.Log)
	}
	if !cfg.Oracle.Enabled || cfg.Oracle.ConfigFile != "oracle.yaml" {
		t.Fatalf("unexpected oracle settings %+v", cfg.Oracle)
	}
	if len(cfg.Vault.Collateral) != 1 || cfg.Vault.Collateral[0].Code != "BTC" {
		t.Fatalf("unexpected collateral %+v", cfg.Vault.Collateral)
	}
	params, err := cfg.Vault.Collateral[0].Params()
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	if params.DebtCeiling.String() != "1000000000000" {
		t.Fatalf("unexpected ceiling %s", params.DebtCeiling)
	}
}

func TestValidateRejections(t *testing.T) {
	admin := testAddress(t)
	oracleAddr := testAddress(t)

	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing admin",
			body: "RPCAddress = \":9000\"\n",
			want: "AdminAddress",
		},
		{
			name: "bad admin address",
			body: "[vault]\nAdminAddress = \"not-bech32\"\n",
			want: "AdminAddress",
		},
		{
			name: "bad oracle address",
			body: fmt.Sprintf("[vault]\nAdminAddress = %q\nOracles = [\"bogus\"]\n", admin),
			want: "oracle",
		},
		{
			name: "missing oracle set",
			body: fmt.Sprintf("[vault]\nAdminAddress = %q\n", admin),
			want: "oracle",
		},
		{
			name: "duplicate collateral",
			body: fmt.Sprintf("[vault]\nAdminAddress = %q\nOracles = [%q]\n[[vault.collateral]]\nCode = \"BTC\"\n[[vault.collateral]]\nCode = \"btc\"\n", admin, oracleAddr),
			want: "duplicate",
		},
		{
			name: "bad collateral amount",
			body: fmt.Sprintf("[vault]\nAdminAddress = %q\nOracles = [%q]\n[[vault.collateral]]\nCode = \"BTC\"\nDebtCeiling = \"12x\"\n", admin, oracleAddr),
			want: "debt ceiling",
		},
		{
			name: "poller without key file",
			body: fmt.Sprintf("[oracle]\nEnabled = true\nConfigFile = \"oracle.yaml\"\n[vault]\nAdminAddress = %q\nOracles = [%q]\n", admin, oracleAddr),
			want: "KeyFile",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.body))
			if err == nil {
				t.Fatalf("expected error containing %q", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}
