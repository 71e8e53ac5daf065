// Package auth loads the deployer's ECDSA signing key.
package auth

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Credentials holds the deployer key and the account it controls.
type Credentials struct {
	Address    common.Address    // account derived from PrivateKey
	PrivateKey *ecdsa.PrivateKey // secp256k1 key used to sign transactions
}

// LoadCredentials builds credentials from a hex key or a key file. Exactly
// one of hexKey and privateKeyPath must be set.
func LoadCredentials(hexKey, privateKeyPath string) (*Credentials, error) {
	var (
		key *ecdsa.PrivateKey
		err error
	)
	switch {
	case hexKey != "" && privateKeyPath != "":
		return nil, fmt.Errorf("set either a private key or a key path, not both")
	case hexKey != "":
		key, err = ParsePrivateKey(hexKey)
	case privateKeyPath != "":
		key, err = LoadPrivateKey(privateKeyPath)
	default:
		return nil, fmt.Errorf("private key is required")
	}
	if err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}

	return &Credentials{
		Address:    Address(key),
		PrivateKey: key,
	}, nil
}

// LoadPrivateKey reads a hex-encoded secp256k1 key from a file.
func LoadPrivateKey(path string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}
	return ParsePrivateKey(string(data))
}

// ParsePrivateKey parses a hex key, with or without 0x prefix.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimSpace(hexKey)
	hexKey = strings.TrimPrefix(strings.TrimPrefix(hexKey, "0x"), "0X")
	if hexKey == "" {
		return nil, fmt.Errorf("empty private key")
	}

	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	return key, nil
}

// Address returns the account address controlled by key.
func Address(key *ecdsa.PrivateKey) common.Address {
	return crypto.PubkeyToAddress(key.PublicKey)
}

// Transactor returns signing options for chainID.
func (c *Credentials) Transactor(chainID *big.Int) (*bind.TransactOpts, error) {
	opts, err := bind.NewKeyedTransactorWithChainID(c.PrivateKey, chainID)
	if err != nil {
		return nil, fmt.Errorf("create transactor: %w", err)
	}
	return opts, nil
}
