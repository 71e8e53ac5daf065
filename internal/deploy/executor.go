package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Result is the outcome of one step.
type Result struct {
	Step     string         `json:"step"`
	Contract string         `json:"contract"`
	Address  common.Address `json:"address"`
	TxHash   common.Hash    `json:"tx_hash"`
	Args     []string       `json:"args"` // resolved arguments
	Duration time.Duration  `json:"duration"`
}

// Outputs collects step results in execution order.
type Outputs struct {
	Results []Result
}

// Address returns the address deployed by step.
func (o *Outputs) Address(step string) (common.Address, bool) {
	for _, r := range o.Results {
		if r.Step == step {
			return r.Address, true
		}
	}
	return common.Address{}, false
}

// Deployer deploys one contract with already-resolved arguments.
type Deployer interface {
	Deploy(ctx context.Context, contract string, args []string) (Result, error)
}

// Executor runs plans through a Deployer.
type Executor struct {
	deployer Deployer
	logger   *slog.Logger
}

// NewExecutor creates an Executor.
func NewExecutor(d Deployer, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{deployer: d, logger: logger}
}

// Apply validates plan and runs its steps in order. On failure it returns
// the results of the steps that completed; they are not rolled back.
func (e *Executor) Apply(ctx context.Context, plan Plan) (*Outputs, error) {
	if err := plan.Validate(); err != nil {
		return nil, fmt.Errorf("validate plan: %w", err)
	}

	out := &Outputs{}
	for _, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("step %s: %w", step.Name, err)
		}

		args, err := resolve(step.Args, out)
		if err != nil {
			return out, fmt.Errorf("step %s: %w", step.Name, err)
		}

		e.logger.Info("deploying", "step", step.Name, "contract", step.Contract, "args", args)
		start := time.Now()

		res, err := e.deployer.Deploy(ctx, step.Contract, args)
		if err != nil {
			return out, fmt.Errorf("step %s: %w", step.Name, err)
		}
		res.Step = step.Name
		res.Contract = step.Contract
		res.Args = args
		res.Duration = time.Since(start)
		out.Results = append(out.Results, res)

		e.logger.Info("deployed", "step", step.Name, "address", res.Address.Hex(), "tx", res.TxHash.Hex(), "duration", res.Duration)
	}
	return out, nil
}

func resolve(args []string, out *Outputs) ([]string, error) {
	resolved := make([]string, len(args))
	for i, arg := range args {
		ref, ok := reference(arg)
		if !ok {
			resolved[i] = arg
			continue
		}
		addr, ok := out.Address(ref)
		if !ok {
			return nil, fmt.Errorf("%w %q", ErrUnknownReference, ref)
		}
		resolved[i] = addr.Hex()
	}
	return resolved, nil
}

// DryRunDeployer predicts CREATE addresses for From starting at Nonce
// without sending anything.
type DryRunDeployer struct {
	From  common.Address
	Nonce uint64
}

// Deploy returns the address the next CREATE from d.From would produce.
func (d *DryRunDeployer) Deploy(ctx context.Context, contract string, args []string) (Result, error) {
	addr := crypto.CreateAddress(d.From, d.Nonce)
	d.Nonce++
	return Result{Address: addr}, nil
}
