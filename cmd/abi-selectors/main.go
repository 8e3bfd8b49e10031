package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"agrimarket.walletd/internal/infrastructure/blockchain"
)

var stdout io.Writer = os.Stdout

func main() {
	if err := printSelectors(stdout); err != nil {
		log.Fatal(err)
	}
}

// printSelectors lists the marketplace function selectors and event topics,
// for matching raw calldata and logs against the contract interface.
func printSelectors(w io.Writer) error {
	parsed, err := abi.JSON(strings.NewReader(blockchain.MarketplaceABI))
	if err != nil {
		return fmt.Errorf("parse marketplace abi: %w", err)
	}

	methods := make([]string, 0, len(parsed.Methods))
	for name := range parsed.Methods {
		methods = append(methods, name)
	}
	sort.Strings(methods)
	for _, name := range methods {
		m := parsed.Methods[name]
		fmt.Fprintf(w, "function %s: 0x%x\n", m.Sig, m.ID)
	}

	events := make([]string, 0, len(parsed.Events))
	for name := range parsed.Events {
		events = append(events, name)
	}
	sort.Strings(events)
	for _, name := range events {
		e := parsed.Events[name]
		fmt.Fprintf(w, "event %s: %s\n", e.Sig, e.ID.Hex())
	}
	return nil
}
