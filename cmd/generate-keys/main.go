// Command generate-keys outputs fresh cryptographic keys.
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/Bren2010/kamui/config"
	"github.com/Bren2010/kamui/crypto/vrf/ristretto255"
	"github.com/Bren2010/kamui/pubkey"
	"gopkg.in/yaml.v2"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	flag.Parse()
	var err error
	switch flag.Arg(0) {
	case "keypair":
		err = generateKeypair(os.Stdout, "Keypair")
	case "vrf":
		err = generateVRF(os.Stdout)
	case "oracle":
		if err = generateKeypair(os.Stdout, "Oracle"); err == nil {
			err = generateVRF(os.Stdout)
		}
	case "devnet":
		err = generateDevnet(os.Stdout)
	default:
		log.Fatalf("Usage: generate-keys (keypair|vrf|oracle|devnet)")
	}
	if err != nil {
		log.Fatal(err)
	}
}

func generateKeypair(w io.Writer, name string) error {
	seed := make([]byte, ed25519.SeedSize)
	if _, err := rand.Read(seed); err != nil {
		return err
	}
	kp, err := pubkey.KeypairFromSeed(seed)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s Seed:   %x\n", name, seed)
	fmt.Fprintf(w, "%s Pubkey: %v\n", name, kp.Pubkey())
	return nil
}

func generateVRF(w io.Writer) error {
	vrfKey := ristretto255.GeneratePrivateKey()
	fmt.Fprintf(w, "VRF Private Key: %x\n", vrfKey)

	temp, err := ristretto255.NewPrivateKey(vrfKey)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "VRF Public Key:  %x\n", temp.PublicKey().Bytes())
	return nil
}

// generateDevnet prints a kamui-server config with fresh keys.
func generateDevnet(w io.Writer) error {
	admin := make([]byte, ed25519.SeedSize)
	oracle := make([]byte, ed25519.SeedSize)
	for _, buf := range [][]byte{admin, oracle} {
		if _, err := rand.Read(buf); err != nil {
			return err
		}
	}

	cfg := &config.Config{
		ServerAddr:  ":8080",
		MetricsAddr: ":8081",
		APIConfig: &config.APIConfig{
			AdminKey:     hex.EncodeToString(admin),
			SlotDuration: 400 * time.Millisecond,
			Airdrop:      true,
		},
		OracleConfig: &config.OracleConfig{
			SigningKey: hex.EncodeToString(oracle),
			VRFKey:     hex.EncodeToString(ristretto255.GeneratePrivateKey()),
		},
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}
