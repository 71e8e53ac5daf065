package chain

import (
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/event"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/flexifi/poolwatch/internal/model"
	"github.com/flexifi/poolwatch/internal/poller"
)

var poolAddress = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

type fakeBackend struct {
	mu       sync.Mutex
	output   []byte
	callErr  error
	lastCall ethereum.CallMsg

	block    atomic.Uint64
	blockErr error

	headsErr error
	heads    chan<- *types.Header
	subErr   chan error
	ready    chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		subErr: make(chan error, 1),
		ready:  make(chan struct{}),
	}
}

func (f *fakeBackend) CallContract(ctx context.Context, call ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastCall = call
	return f.output, f.callErr
}

func (f *fakeBackend) BlockNumber(ctx context.Context) (uint64, error) {
	if f.blockErr != nil {
		return 0, f.blockErr
	}
	return f.block.Load(), nil
}

func (f *fakeBackend) SubscribeNewHead(ctx context.Context, ch chan<- *types.Header) (ethereum.Subscription, error) {
	if f.headsErr != nil {
		return nil, f.headsErr
	}
	f.heads = ch
	close(f.ready)
	return event.NewSubscription(func(quit <-chan struct{}) error {
		select {
		case <-quit:
			return nil
		case err := <-f.subErr:
			return err
		}
	}), nil
}

func packTotalAssets(t *testing.T, v *big.Int) []byte {
	t.Helper()
	parsed, err := ViewABI("totalAssets")
	if err != nil {
		t.Fatalf("ViewABI failed: %v", err)
	}
	out, err := parsed.Methods["totalAssets"].Outputs.Pack(v)
	if err != nil {
		t.Fatalf("pack output: %v", err)
	}
	return out
}

func newTotalAssetsReader(t *testing.T, backend Backend, opts ...ReaderOption) *ContractReader {
	t.Helper()
	parsed, err := ViewABI("totalAssets")
	if err != nil {
		t.Fatalf("ViewABI failed: %v", err)
	}
	r, err := NewContractReader(backend, poolAddress, parsed, "totalAssets", opts...)
	if err != nil {
		t.Fatalf("NewContractReader failed: %v", err)
	}
	return r
}

func recvChange(t *testing.T, ch <-chan poller.Change) poller.Change {
	t.Helper()
	select {
	case c, ok := <-ch:
		if !ok {
			t.Fatal("change feed closed")
		}
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("no change within deadline")
		return poller.Change{}
	}
}

func TestRead_DecodesUint256(t *testing.T) {
	backend := newFakeBackend()
	backend.output = packTotalAssets(t, big.NewInt(42))
	r := newTotalAssetsReader(t, backend)

	raw, err := r.Read(context.Background())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if raw.IsNull() || raw.Int.Int64() != 42 {
		t.Errorf("reading = %s, want 42", raw)
	}

	if backend.lastCall.To == nil || *backend.lastCall.To != poolAddress {
		t.Errorf("call target = %v, want %s", backend.lastCall.To, poolAddress.Hex())
	}
	// selector for totalAssets()
	if got := common.Bytes2Hex(backend.lastCall.Data); got != "01e1d114" {
		t.Errorf("call data = %s, want 01e1d114", got)
	}
}

func TestRead_LargeValue(t *testing.T) {
	v, _ := new(big.Int).SetString("1000000000000000000000000", 10)
	backend := newFakeBackend()
	backend.output = packTotalAssets(t, v)

	raw, err := newTotalAssetsReader(t, backend).Read(context.Background())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if raw.Int.Cmp(v) != 0 {
		t.Errorf("reading = %s, want %s", raw, v)
	}
}

func TestRead_Errors(t *testing.T) {
	tests := []struct {
		name    string
		output  []byte
		callErr error
		wantErr error
		wantNil bool
	}{
		{name: "transport error", callErr: errors.New("connection refused"), wantErr: model.ErrSourceUnavailable},
		{name: "revert", callErr: errors.New("execution reverted"), wantErr: model.ErrSourceUnavailable},
		{name: "no code", output: []byte{}, wantErr: model.ErrSourceUnavailable},
		{name: "short output", output: []byte{0x01, 0x02}, wantNil: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend()
			backend.output = tt.output
			backend.callErr = tt.callErr

			raw, err := newTotalAssetsReader(t, backend).Read(context.Background())
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.wantNil && !raw.IsNull() {
				t.Errorf("reading = %s, want null", raw)
			}
		})
	}
}

func TestNewContractReader_Invalid(t *testing.T) {
	parsed, _ := ViewABI("totalAssets")

	if _, err := NewContractReader(newFakeBackend(), common.Address{}, parsed, "totalAssets"); !errors.Is(err, model.ErrInvalidConfig) {
		t.Errorf("zero address err = %v, want ErrInvalidConfig", err)
	}
	if _, err := NewContractReader(newFakeBackend(), poolAddress, parsed, "balanceOf"); !errors.Is(err, model.ErrInvalidConfig) {
		t.Errorf("missing method err = %v, want ErrInvalidConfig", err)
	}
	if _, err := NewContractReader(nil, poolAddress, parsed, "totalAssets"); !errors.Is(err, model.ErrInvalidConfig) {
		t.Errorf("nil backend err = %v, want ErrInvalidConfig", err)
	}
	if _, err := ViewABI(""); !errors.Is(err, model.ErrInvalidConfig) {
		t.Errorf("empty method err = %v, want ErrInvalidConfig", err)
	}
}

func TestToReading(t *testing.T) {
	tests := []struct {
		in   any
		want string
		null bool
	}{
		{in: big.NewInt(7), want: "7"},
		{in: uint8(18), want: "18"},
		{in: uint64(1 << 40), want: "1099511627776"},
		{in: true, null: true},
		{in: (*big.Int)(nil), null: true},
	}
	for _, tt := range tests {
		got := toReading(tt.in)
		if got.IsNull() != tt.null {
			t.Errorf("toReading(%v) null = %v, want %v", tt.in, got.IsNull(), tt.null)
			continue
		}
		if !tt.null && got.Int.String() != tt.want {
			t.Errorf("toReading(%v) = %s, want %s", tt.in, got.Int, tt.want)
		}
	}
}

func TestChanges_NewHeads(t *testing.T) {
	backend := newFakeBackend()
	r := newTotalAssetsReader(t, backend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := r.Changes(ctx)
	if err != nil {
		t.Fatalf("Changes failed: %v", err)
	}
	<-backend.ready

	backend.heads <- &types.Header{Number: big.NewInt(7)}
	if c := recvChange(t, changes); c.Block != 7 || c.Err != nil {
		t.Errorf("change = %+v, want block 7", c)
	}

	backend.subErr <- errors.New("websocket closed")
	c := recvChange(t, changes)
	if !errors.Is(c.Err, model.ErrSourceUnavailable) {
		t.Errorf("change err = %v, want ErrSourceUnavailable", c.Err)
	}
}

func TestChanges_CancelClosesFeed(t *testing.T) {
	backend := newFakeBackend()
	r := newTotalAssetsReader(t, backend)

	ctx, cancel := context.WithCancel(context.Background())
	changes, err := r.Changes(ctx)
	if err != nil {
		t.Fatalf("Changes failed: %v", err)
	}
	cancel()

	select {
	case _, ok := <-changes:
		if ok {
			t.Error("expected closed feed after cancel")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("feed not closed after cancel")
	}
}

func TestChanges_PollingFallback(t *testing.T) {
	backend := newFakeBackend()
	backend.headsErr = rpc.ErrNotificationsUnsupported
	backend.block.Store(10)
	r := newTotalAssetsReader(t, backend, WithPollInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := r.Changes(ctx)
	if err != nil {
		t.Fatalf("Changes failed: %v", err)
	}

	backend.block.Store(12)
	if c := recvChange(t, changes); c.Block != 12 {
		t.Errorf("block = %d, want 12", c.Block)
	}
}

func TestChanges_SubscribeError(t *testing.T) {
	backend := newFakeBackend()
	backend.headsErr = errors.New("dial tcp: refused")

	_, err := newTotalAssetsReader(t, backend).Changes(context.Background())
	if !errors.Is(err, model.ErrSourceUnavailable) {
		t.Errorf("err = %v, want ErrSourceUnavailable", err)
	}
}

const poolDeployment = `{
  "address": "0x5FbDB2315678afecb367f032d93F642f64180aa3",
  "abi": [
    {"type":"function","name":"totalAssets","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
    {"type":"function","name":"deposit","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]}
  ],
  "transactionHash": "0x00"
}`

func TestLoadDeployment(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "localhost"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "localhost", "BusinessPooling.json"), []byte(poolDeployment), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := LoadDeployment(dir, "localhost", "BusinessPooling")
	if err != nil {
		t.Fatalf("LoadDeployment failed: %v", err)
	}
	if d.Address != poolAddress {
		t.Errorf("address = %s, want %s", d.Address.Hex(), poolAddress.Hex())
	}
	if _, err := NewContractReader(newFakeBackend(), d.Address, d.ABI, "totalAssets"); err != nil {
		t.Errorf("reader from deployment: %v", err)
	}
	if _, err := NewContractReader(newFakeBackend(), d.Address, d.ABI, "deposit"); !errors.Is(err, model.ErrInvalidConfig) {
		t.Errorf("function with inputs err = %v, want ErrInvalidConfig", err)
	}

	if _, err := LoadDeployment(dir, "sepolia", "BusinessPooling"); !errors.Is(err, model.ErrInvalidConfig) {
		t.Errorf("missing file err = %v, want ErrInvalidConfig", err)
	}
}

func TestParseDeployment_Invalid(t *testing.T) {
	tests := map[string]string{
		"not json":   `{`,
		"no address": `{"abi": []}`,
		"no abi":     `{"address": "0x5FbDB2315678afecb367f032d93F642f64180aa3"}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseDeployment("X", []byte(doc)); !errors.Is(err, model.ErrInvalidConfig) {
				t.Errorf("err = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestSaveDeployment_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	rawABI := []byte(`[{"type":"function","name":"totalAssets","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]}]`)
	tx := common.HexToHash("0xabc")

	path, err := SaveDeployment(dir, "localhost", "BusinessPooling", poolAddress, tx, rawABI, []string{"0xdAC17F958D2ee523a2206206994597C13D831ec7"})
	if err != nil {
		t.Fatalf("SaveDeployment failed: %v", err)
	}
	if want := filepath.Join(dir, "localhost", "BusinessPooling.json"); path != want {
		t.Errorf("path = %s, want %s", path, want)
	}

	d, err := LoadDeployment(dir, "localhost", "BusinessPooling")
	if err != nil {
		t.Fatalf("LoadDeployment failed: %v", err)
	}
	if d.Address != poolAddress {
		t.Errorf("address = %s, want %s", d.Address.Hex(), poolAddress.Hex())
	}
	if _, ok := d.ABI.Methods["totalAssets"]; !ok {
		t.Error("totalAssets missing after round trip")
	}
}
