package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/flexifi/poolwatch/internal/model"
)

// ViewABI returns an ABI holding a single view function with no inputs that
// returns a uint256, e.g. totalAssets().
func ViewABI(method string) (abi.ABI, error) {
	if method == "" {
		return abi.ABI{}, fmt.Errorf("%w: function name is required", model.ErrInvalidConfig)
	}
	def := fmt.Sprintf(`[{"type":"function","name":%q,"stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}]`, method)
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("%w: build abi for %s: %v", model.ErrInvalidConfig, method, err)
	}
	return parsed, nil
}

// checkMethod verifies that method exists, takes no inputs and returns one value.
func checkMethod(contractABI abi.ABI, method string) error {
	m, ok := contractABI.Methods[method]
	if !ok {
		return fmt.Errorf("%w: abi has no function %q", model.ErrInvalidConfig, method)
	}
	if len(m.Inputs) != 0 {
		return fmt.Errorf("%w: function %q takes %d inputs, want 0", model.ErrInvalidConfig, method, len(m.Inputs))
	}
	if len(m.Outputs) != 1 {
		return fmt.Errorf("%w: function %q returns %d values, want 1", model.ErrInvalidConfig, method, len(m.Outputs))
	}
	return nil
}
