package deploy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Artifact is a compiled contract as written by hardhat.
type Artifact struct {
	Name     string
	ABI      abi.ABI
	RawABI   json.RawMessage
	Bytecode []byte
}

type artifactFile struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     string          `json:"bytecode"`
}

// ArtifactStore loads artifacts from a hardhat artifacts directory, e.g.
// artifacts/contracts.
type ArtifactStore struct {
	Dir string
}

// Load finds <Dir>/<name>.sol/<name>.json or <Dir>/<name>.json.
func (s ArtifactStore) Load(name string) (Artifact, error) {
	candidates := []string{
		filepath.Join(s.Dir, name+".sol", name+".json"),
		filepath.Join(s.Dir, name+".json"),
	}
	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return Artifact{}, fmt.Errorf("read artifact %s: %w", name, err)
		}
		return ParseArtifact(name, data)
	}
	return Artifact{}, fmt.Errorf("artifact %s not found under %s", name, s.Dir)
}

// ParseArtifact decodes a hardhat artifact document.
func ParseArtifact(name string, data []byte) (Artifact, error) {
	var f artifactFile
	if err := json.Unmarshal(data, &f); err != nil {
		return Artifact{}, fmt.Errorf("parse artifact %s: %w", name, err)
	}
	if f.ContractName != "" {
		name = f.ContractName
	}

	code := common.FromHex(strings.TrimSpace(f.Bytecode))
	if len(code) == 0 {
		return Artifact{}, fmt.Errorf("artifact %s has no bytecode (abstract contract or interface?)", name)
	}

	parsed, err := abi.JSON(bytes.NewReader(f.ABI))
	if err != nil {
		return Artifact{}, fmt.Errorf("parse abi for %s: %w", name, err)
	}

	return Artifact{Name: name, ABI: parsed, RawABI: f.ABI, Bytecode: code}, nil
}
