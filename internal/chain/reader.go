package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/flexifi/poolwatch/internal/model"
	"github.com/flexifi/poolwatch/internal/poller"
)

// DefaultPollInterval is used for block polling when the endpoint cannot
// push new heads.
const DefaultPollInterval = 4 * time.Second

// ReaderOption configures a ContractReader.
type ReaderOption func(*ContractReader)

// WithPollInterval sets the eth_blockNumber polling interval.
func WithPollInterval(d time.Duration) ReaderOption {
	return func(r *ContractReader) {
		if d > 0 {
			r.pollInterval = d
		}
	}
}

// WithLogger sets the reader's logger.
func WithLogger(logger *slog.Logger) ReaderOption {
	return func(r *ContractReader) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// ContractReader is a poller.Source backed by a contract view function.
type ContractReader struct {
	backend      Backend
	address      common.Address
	method       string
	abi          abi.ABI
	pollInterval time.Duration
	logger       *slog.Logger
}

var _ poller.Source = (*ContractReader)(nil)

// NewContractReader creates a reader for method on the contract at address.
func NewContractReader(backend Backend, address common.Address, contractABI abi.ABI, method string, opts ...ReaderOption) (*ContractReader, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: backend is required", model.ErrInvalidConfig)
	}
	if address == (common.Address{}) {
		return nil, fmt.Errorf("%w: contract address is required", model.ErrInvalidConfig)
	}
	if err := checkMethod(contractABI, method); err != nil {
		return nil, err
	}

	r := &ContractReader{
		backend:      backend,
		address:      address,
		method:       method,
		abi:          contractABI,
		pollInterval: DefaultPollInterval,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("contract", address.Hex(), "function", method)
	return r, nil
}

// Address returns the contract address.
func (r *ContractReader) Address() common.Address {
	return r.address
}

// Read calls the view function at the latest block. Transport failures and
// reverts wrap model.ErrSourceUnavailable; output that does not decode to an
// integer is returned as a null reading.
func (r *ContractReader) Read(ctx context.Context) (model.RawReading, error) {
	input, err := r.abi.Pack(r.method)
	if err != nil {
		return model.RawReading{}, fmt.Errorf("%w: pack %s: %v", model.ErrInvalidConfig, r.method, err)
	}

	out, err := r.backend.CallContract(ctx, ethereum.CallMsg{To: &r.address, Data: input}, nil)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return model.RawReading{}, err
		}
		return model.RawReading{}, fmt.Errorf("%w: call %s: %v", model.ErrSourceUnavailable, r.method, err)
	}
	if len(out) == 0 {
		return model.RawReading{}, fmt.Errorf("%w: call %s: no contract code at %s", model.ErrSourceUnavailable, r.method, r.address.Hex())
	}

	values, err := r.abi.Unpack(r.method, out)
	if err != nil || len(values) != 1 {
		r.logger.Debug("undecodable call output", "output", hexutil.Encode(out), "error", err)
		return model.RawReading{Text: hexutil.Encode(out)}, nil
	}
	return toReading(values[0]), nil
}

func toReading(v any) model.RawReading {
	switch n := v.(type) {
	case *big.Int:
		if n == nil {
			return model.NullReading()
		}
		return model.ReadingFromBig(n)
	case string:
		return model.ParseRawReading(n)
	default:
		// Small integer types decode to Go ints; anything else becomes null.
		return model.ParseRawReading(fmt.Sprint(v))
	}
}

// Changes reports a Change for every new block. Websocket and IPC endpoints
// push heads; HTTP endpoints fall back to polling eth_blockNumber.
func (r *ContractReader) Changes(ctx context.Context) (<-chan poller.Change, error) {
	heads := make(chan *types.Header, 16)
	sub, err := r.backend.SubscribeNewHead(ctx, heads)
	if errors.Is(err, rpc.ErrNotificationsUnsupported) {
		r.logger.Debug("notifications unsupported, polling block number", "interval", r.pollInterval)
		// The baseline is taken before the first read so no block is missed.
		start, err := r.backend.BlockNumber(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: block number: %v", model.ErrSourceUnavailable, err)
		}
		return r.pollBlocks(ctx, start), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: subscribe new heads: %v", model.ErrSourceUnavailable, err)
	}

	out := make(chan poller.Change)
	go func() {
		defer close(out)
		defer sub.Unsubscribe()

		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-sub.Err():
				if ok && err != nil {
					send(ctx, out, poller.Change{Err: fmt.Errorf("%w: head subscription: %v", model.ErrSourceUnavailable, err)})
				}
				return
			case h := <-heads:
				var block uint64
				if h != nil && h.Number != nil {
					block = h.Number.Uint64()
				}
				if !send(ctx, out, poller.Change{Block: block}) {
					return
				}
			}
		}
	}()
	return out, nil
}

// pollBlocks emits a Change whenever eth_blockNumber advances.
func (r *ContractReader) pollBlocks(ctx context.Context, last uint64) <-chan poller.Change {
	out := make(chan poller.Change)
	go func() {
		defer close(out)

		ticker := time.NewTicker(r.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			n, err := r.backend.BlockNumber(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				send(ctx, out, poller.Change{Err: fmt.Errorf("%w: block number: %v", model.ErrSourceUnavailable, err)})
				return
			}
			if n <= last {
				continue
			}
			last = n
			if !send(ctx, out, poller.Change{Block: n}) {
				return
			}
		}
	}()
	return out
}

func send(ctx context.Context, out chan<- poller.Change, c poller.Change) bool {
	select {
	case out <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
