package main

import (
	"errors"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	solanakit "stakereferral/pkg/solana"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run generates a proxy authority key pair, or with --show prints the
// public key of an existing entry.
func run() error {
	dirFlag := flag.String("dir", "", "keystore directory (or set REFERRAL_KEYSTORE_DIR env var)")
	showFlag := flag.String("show", "", "address of an existing entry to unlock")
	flag.Parse()

	if *dirFlag == "" {
		*dirFlag = os.Getenv("REFERRAL_KEYSTORE_DIR")
	}
	password := os.Getenv("REFERRAL_PROXY_KEYSTORE_PASSWORD")
	if password == "" {
		return errors.New("REFERRAL_PROXY_KEYSTORE_PASSWORD is required")
	}
	ks := solanakit.NewKeystore(*dirFlag)

	if *showFlag != "" {
		key, err := ks.PublicKey(*showFlag, password)
		if err != nil {
			return err
		}
		fmt.Println(key.String())
		return nil
	}

	account := ks.GenerateKeyPair()
	path, err := ks.Save(account, password)
	if err != nil {
		return err
	}
	fmt.Printf("address: %s\nfile:    %s\n", account.PublicKey.ToBase58(), path)
	return nil
}
