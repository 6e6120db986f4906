// Package config implements the file format of kamui-server config files.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/Bren2010/kamui/crypto/vrf/ristretto255"
	"github.com/Bren2010/kamui/devnet"
	"github.com/Bren2010/kamui/pubkey"
	"gopkg.in/yaml.v2"
)

// Config specifies the file format of config files.
type Config struct {
	ServerAddr   string     `yaml:"addr"`
	MetricsAddr  string     `yaml:"metrics-addr,omitempty"`
	DatabaseFile string     `yaml:"db-file,omitempty"` // Empty for an in-memory database.
	TLSConfig    *TLSConfig `yaml:"tls,omitempty"`
	tlsConfig    *tls.Config

	APIConfig    *APIConfig    `yaml:"api"`
	OracleConfig *OracleConfig `yaml:"oracle,omitempty"`
}

// TLSConfig specifies the API server's TLS config. Since this is only intended
// for use with Cloudflare OriginCA, TLS on the server also starts requiring a
// valid client certificate.
type TLSConfig struct {
	Cert     string `yaml:"cert"`
	Key      string `yaml:"key"`
	ClientCA string `yaml:"client-ca"` // CA for validating client certificates.
}

type APIConfig struct {
	HomeRedirect string `yaml:"home,omitempty"`

	AdminKey string `yaml:"admin-key"` // 32 byte hex-encoded seed for the coordinator admin.
	admin    *pubkey.Keypair

	Programs     *devnet.Programs `yaml:"programs,omitempty"` // Optional, defaults to devnet.DefaultPrograms.
	SlotDuration time.Duration    `yaml:"slot-duration"`
	Airdrop      bool             `yaml:"airdrop"`
}

// OracleConfig enables an in-process oracle.
type OracleConfig struct {
	SigningKey string `yaml:"signing-key"` // 32 byte hex-encoded seed for the oracle's keypair.
	signingKey *pubkey.Keypair

	VRFKey string `yaml:"vrf-key"` // 32 byte hex-encoded VRF private key.
	vrfKey *ristretto255.PrivateKey

	PollInterval time.Duration `yaml:"poll-interval,omitempty"`
}

// TLS returns the parsed TLS config, or nil if TLS is disabled.
func (c *Config) TLS() *tls.Config { return c.tlsConfig }

// Admin returns the parsed coordinator admin keypair.
func (ac *APIConfig) Admin() *pubkey.Keypair { return ac.admin }

// Keypair returns the parsed oracle keypair.
func (oc *OracleConfig) Keypair() *pubkey.Keypair { return oc.signingKey }

// VRF returns the parsed VRF private key.
func (oc *OracleConfig) VRF() *ristretto255.PrivateKey { return oc.vrfKey }

func Read(filename string) (*Config, error) {
	// Read from file and parse.
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes and validates a config file's contents.
func Parse(raw []byte) (*Config, error) {
	var parsed Config
	if err := yaml.UnmarshalStrict(raw, &parsed); err != nil {
		return nil, err
	}

	// Check that all required fields are populated.
	if parsed.ServerAddr == "" {
		return nil, fmt.Errorf("field not provided: addr")
	} else if parsed.APIConfig == nil {
		return nil, fmt.Errorf("field not provided: api")
	} else if parsed.APIConfig.AdminKey == "" {
		return nil, fmt.Errorf("field not provided: api.admin-key")
	} else if parsed.APIConfig.SlotDuration <= 0 {
		return nil, fmt.Errorf("field not provided: api.slot-duration")
	}
	if parsed.APIConfig.Programs == nil {
		programs := devnet.DefaultPrograms()
		parsed.APIConfig.Programs = &programs
	}

	// Parse TLS config if necessary.
	if parsed.TLSConfig != nil {
		cert, err := tls.LoadX509KeyPair(parsed.TLSConfig.Cert, parsed.TLSConfig.Key)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS certificate/key: %v", err)
		}

		certPool := x509.NewCertPool()
		caCerts, err := os.ReadFile(parsed.TLSConfig.ClientCA)
		if err != nil {
			return nil, fmt.Errorf("failed to load TLS client CA: %v", err)
		} else if ok := certPool.AppendCertsFromPEM(caCerts); !ok {
			return nil, fmt.Errorf("no client CA certificates successfully parsed from file")
		}

		parsed.tlsConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			ClientAuth:   tls.RequireAndVerifyClientCert,
			ClientCAs:    certPool,
		}
	}

	// Parse cryptographic keys.
	var err error
	parsed.APIConfig.admin, err = parseSeed("api.admin-key", parsed.APIConfig.AdminKey)
	if err != nil {
		return nil, err
	}
	if oc := parsed.OracleConfig; oc != nil {
		if oc.SigningKey == "" {
			return nil, fmt.Errorf("field not provided: oracle.signing-key")
		} else if oc.VRFKey == "" {
			return nil, fmt.Errorf("field not provided: oracle.vrf-key")
		}
		if oc.signingKey, err = parseSeed("oracle.signing-key", oc.SigningKey); err != nil {
			return nil, err
		}
		vrfKey, err := hex.DecodeString(oc.VRFKey)
		if err != nil {
			return nil, fmt.Errorf("failed to parse vrf key: %v", err)
		} else if oc.vrfKey, err = ristretto255.NewPrivateKey(vrfKey); err != nil {
			return nil, fmt.Errorf("failed to parse vrf key: %v", err)
		}
		if oc.PollInterval <= 0 {
			oc.PollInterval = parsed.APIConfig.SlotDuration
		}
	}

	return &parsed, nil
}

func parseSeed(field, value string) (*pubkey.Keypair, error) {
	seed, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %v: %v", field, err)
	}
	kp, err := pubkey.KeypairFromSeed(seed)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %v: %v", field, err)
	}
	return kp, nil
}
