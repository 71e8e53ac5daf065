package chain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/flexifi/poolwatch/internal/model"
)

// Deployment is a contract recorded by hardhat-deploy.
type Deployment struct {
	Name    string
	Address common.Address
	ABI     abi.ABI
}

type deploymentFile struct {
	Address         common.Address  `json:"address"`
	ABI             json.RawMessage `json:"abi"`
	TransactionHash string          `json:"transactionHash,omitempty"`
	Args            []string        `json:"args,omitempty"`
}

// LoadDeployment reads <dir>/<network>/<contract>.json as written by
// hardhat-deploy.
func LoadDeployment(dir, network, contract string) (Deployment, error) {
	path := filepath.Join(dir, network, contract+".json")
	data, err := os.ReadFile(path)
	if err != nil {
		return Deployment{}, fmt.Errorf("%w: read deployment: %v", model.ErrInvalidConfig, err)
	}
	return ParseDeployment(contract, data)
}

// ParseDeployment decodes a hardhat-deploy deployment document.
func ParseDeployment(name string, data []byte) (Deployment, error) {
	var f deploymentFile
	if err := json.Unmarshal(data, &f); err != nil {
		return Deployment{}, fmt.Errorf("%w: parse deployment %s: %v", model.ErrInvalidConfig, name, err)
	}
	if f.Address == (common.Address{}) {
		return Deployment{}, fmt.Errorf("%w: deployment %s has no address", model.ErrInvalidConfig, name)
	}
	if len(f.ABI) == 0 {
		return Deployment{}, fmt.Errorf("%w: deployment %s has no abi", model.ErrInvalidConfig, name)
	}

	parsed, err := abi.JSON(bytes.NewReader(f.ABI))
	if err != nil {
		return Deployment{}, fmt.Errorf("%w: parse abi for %s: %v", model.ErrInvalidConfig, name, err)
	}
	return Deployment{Name: name, Address: f.Address, ABI: parsed}, nil
}

// SaveDeployment writes a deployment document in the layout LoadDeployment
// reads, creating <dir>/<network> when needed.
func SaveDeployment(dir, network, contract string, address common.Address, tx common.Hash, rawABI json.RawMessage, args []string) (string, error) {
	f := deploymentFile{Address: address, ABI: rawABI, Args: args}
	if tx != (common.Hash{}) {
		f.TransactionHash = tx.Hex()
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode deployment %s: %w", contract, err)
	}

	netDir := filepath.Join(dir, network)
	if err := os.MkdirAll(netDir, 0o755); err != nil {
		return "", fmt.Errorf("create deployments dir: %w", err)
	}
	path := filepath.Join(netDir, contract+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write deployment %s: %w", contract, err)
	}
	return path, nil
}
