package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

type Config struct {
	RPCAddress     string   `toml:"RPCAddress"`
	DataDir        string   `toml:"DataDir"`
	ServiceName    string   `toml:"ServiceName"`
	Environment    string   `toml:"Environment"`
	LogFile        string   `toml:"LogFile"`
	AuthToken      string   `toml:"AuthToken"`
	MarketVault    string   `toml:"MarketVault"`
	IncentiveVault string   `toml:"IncentiveVault"`
	FeeTreasury    string   `toml:"FeeTreasury"`
	PlatformFeeBps uint32   `toml:"PlatformFeeBps"`
	PaymentTokens  []string `toml:"PaymentTokens"`
	Admins         []string `toml:"Admins"`
	SplitAdmins    []string `toml:"SplitAdmins"`
}

// Load loads the configuration from the given path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.ServiceName) == "" {
		cfg.ServiceName = "marketd"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if cfg.PaymentTokens == nil {
		cfg.PaymentTokens = []string{}
	}
	if cfg.Admins == nil {
		cfg.Admins = []string{}
	}
	if cfg.SplitAdmins == nil {
		cfg.SplitAdmins = []string{}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the address fields and fee range.
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress must not be empty")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	if cfg.PlatformFeeBps > 10_000 {
		return fmt.Errorf("config: PlatformFeeBps %d exceeds 10000", cfg.PlatformFeeBps)
	}
	for name, value := range map[string]string{
		"MarketVault":    cfg.MarketVault,
		"IncentiveVault": cfg.IncentiveVault,
		"FeeTreasury":    cfg.FeeTreasury,
	} {
		if _, err := ParseAddress(value); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	for _, entry := range cfg.PaymentTokens {
		if _, err := ParseAddress(entry); err != nil {
			return fmt.Errorf("config: PaymentTokens: %w", err)
		}
	}
	for _, entry := range append(append([]string{}, cfg.Admins...), cfg.SplitAdmins...) {
		if _, err := ParseAddress(entry); err != nil {
			return fmt.Errorf("config: admin address: %w", err)
		}
	}
	return nil
}

// ParseAddress decodes a 0x-prefixed hex address.
func ParseAddress(value string) ([20]byte, error) {
	trimmed := strings.TrimSpace(value)
	if !ethcommon.IsHexAddress(trimmed) {
		return [20]byte{}, fmt.Errorf("invalid address %q", value)
	}
	return ethcommon.HexToAddress(trimmed), nil
}

// ParseAddresses decodes a list of 0x-prefixed hex addresses.
func ParseAddresses(values []string) ([][20]byte, error) {
	out := make([][20]byte, 0, len(values))
	for _, value := range values {
		addr, err := ParseAddress(value)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		RPCAddress:     ":8545",
		DataDir:        "./curio-data",
		ServiceName:    "marketd",
		Environment:    "local",
		MarketVault:    "0x0000000000000000000000000000000000000101",
		IncentiveVault: "0x0000000000000000000000000000000000000102",
		FeeTreasury:    "0x0000000000000000000000000000000000000103",
		PlatformFeeBps: 250,
		PaymentTokens:  []string{},
		Admins:         []string{},
		SplitAdmins:    []string{},
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
