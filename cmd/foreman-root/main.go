package main

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/gagliardetto/solana-go"
	flag "github.com/spf13/pflag"

	"stakereferral/internal/referral"
)

type operatorProof struct {
	Key   string `json:"key"`
	Index uint64 `json:"index"`
	Proof string `json:"proof"`
}

type output struct {
	Root      string          `json:"root"`
	Operators []operatorProof `json:"operators"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	keysFlag := flag.StringSlice("key", nil, "operator public key (repeatable, or comma separated)")
	fileFlag := flag.String("file", "", "file with one operator public key per line")
	flag.Parse()

	raw := append([]string{}, *keysFlag...)
	if *fileFlag != "" {
		lines, err := readLines(*fileFlag)
		if err != nil {
			return err
		}
		raw = append(raw, lines...)
	}
	if len(raw) == 0 {
		return fmt.Errorf("no operator keys, use --key or --file")
	}

	keys := make([]solana.PublicKey, 0, len(raw))
	seen := make(map[solana.PublicKey]bool, len(raw))
	for _, r := range raw {
		key, err := solana.PublicKeyFromBase58(r)
		if err != nil {
			return fmt.Errorf("invalid key %q: %w", r, err)
		}
		if seen[key] {
			return fmt.Errorf("duplicate key %s", key)
		}
		seen[key] = true
		keys = append(keys, key)
	}

	root, proofs := referral.BuildOperatorTree(keys)
	out := output{Root: hex.EncodeToString(root[:])}
	for i := range proofs {
		out.Operators = append(out.Operators, operatorProof{
			Key:   keys[i].String(),
			Index: proofs[i].Index,
			Proof: proofs[i].Encode(),
		})
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines, scanner.Err()
}
