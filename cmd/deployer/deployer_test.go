package main

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/flexifi/poolwatch/internal/deploy"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	// Flags are package variables; reset the ones tests touch.
	planPath, dryRun, fromAddr, startNonce, network, deploymentsDir = "", false, "", -1, "", "deployments"

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestPlanCommand_Default(t *testing.T) {
	out, err := execute(t, "plan")
	if err != nil {
		t.Fatalf("plan failed: %v\n%s", err, out)
	}
	for _, want := range []string{"BusinessPoolToken", "BusinessPooling", "${BusinessPoolToken.address}", "plan is valid"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestPlanCommand_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	body := "steps:\n  - name: pool\n    contract: BusinessPooling\n    args: [\"${token.address}\"]\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "plan", "--plan", path); err == nil {
		t.Fatal("expected invalid plan error")
	}
}

func TestApplyCommand_DryRun(t *testing.T) {
	out, err := execute(t, "apply", "--dry-run",
		"--from", "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		"--nonce", "0")
	if err != nil {
		t.Fatalf("apply --dry-run failed: %v\n%s", err, out)
	}
	for _, want := range []string{
		"DRY RUN",
		"0x5FbDB2315678afecb367f032d93F642f64180aa3",
		"0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestApplyCommand_DryRunBadFrom(t *testing.T) {
	if _, err := execute(t, "apply", "--dry-run", "--from", "alice", "--nonce", "0"); err == nil {
		t.Fatal("expected error for non-hex --from")
	}
}

// fakeNode answers ChainID and records Close. Other backend calls are
// not expected.
type fakeNode struct {
	deploy.ChainBackend
	chainErr error
	closed   atomic.Int32
}

func (n *fakeNode) ChainID(ctx context.Context) (*big.Int, error) {
	if n.chainErr != nil {
		return nil, n.chainErr
	}
	return big.NewInt(31337), nil
}

func (n *fakeNode) Close() { n.closed.Add(1) }

func stubNode(t *testing.T, n *fakeNode) {
	t.Helper()
	orig := dialNode
	dialNode = func(ctx context.Context, url string) (nodeClient, error) { return n, nil }
	t.Cleanup(func() { dialNode = orig })
}

func TestApplyCommand_ClosesNodeClient(t *testing.T) {
	tests := []struct {
		name     string
		chainErr error
	}{
		{"apply fails after dial", nil},
		{"chain id fails", errors.New("connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DEPLOYER_PRIVATE_KEY", "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
			t.Setenv("DEPLOYER_ARTIFACTS_DIR", t.TempDir())

			node := &fakeNode{chainErr: tt.chainErr}
			stubNode(t, node)

			if _, err := execute(t, "apply", "--deployments", t.TempDir()); err == nil {
				t.Fatal("expected apply to fail")
			}
			if got := node.closed.Load(); got != 1 {
				t.Errorf("Close called %d times, want 1", got)
			}
		})
	}
}
