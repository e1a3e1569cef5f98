package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/JonMunkholm/chflat/internal/identifier"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindInternal},
		{"plain error", errors.New("boom"), KindInternal},
		{"classified", E(KindAuth, "connect", errors.New("denied")), KindAuth},
		{"classified wrapped again", fmt.Errorf("tables: %w", E(KindNotFound, "x", errors.New("gone"))), KindNotFound},
		{"identifier", identifier.Column("a b"), KindInvalidInput},
		{"no columns sentinel", ErrNoColumnsSelected, KindNoColumnsSelected},
		{"topology sentinel", fmt.Errorf("select: %w", ErrUnsupportedTopology), KindUnsupportedTopology},
		{"busy", fmt.Errorf("ingest: %w", ErrTooManyTransfers), KindBusy},
		{"deadline", context.DeadlineExceeded, KindConnection},
		{"partial wins", &PartialTransferError{Committed: 3, Err: E(KindConnection, "insert", errors.New("reset"))}, KindPartialTransfer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestKind_ClientError(t *testing.T) {
	client := []Kind{KindInvalidInput, KindUnsupportedTopology, KindNoColumnsSelected, KindNotFound}
	server := []Kind{KindInternal, KindConnection, KindAuth, KindPartialTransfer, KindBusy}

	for _, k := range client {
		if !k.ClientError() {
			t.Errorf("%v.ClientError() = false, want true", k)
		}
	}
	for _, k := range server {
		if k.ClientError() {
			t.Errorf("%v.ClientError() = true, want false", k)
		}
	}
}

func TestE_NilPassthrough(t *testing.T) {
	if err := E(KindAuth, "op", nil); err != nil {
		t.Errorf("E(nil) = %v, want nil", err)
	}
}

func TestError_Message(t *testing.T) {
	err := Invalid("preview", "filename required")
	if got, want := err.Error(), "preview: filename required"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestCommittedRows(t *testing.T) {
	cause := errors.New("insert failed")
	err := fmt.Errorf("ingest: %w", &PartialTransferError{Committed: 20000, Err: cause})

	n, ok := CommittedRows(err)
	if !ok || n != 20000 {
		t.Errorf("CommittedRows = %d, %v; want 20000, true", n, ok)
	}
	if !errors.Is(err, cause) {
		t.Error("partial transfer error should unwrap to its cause")
	}
	if _, ok := CommittedRows(cause); ok {
		t.Error("CommittedRows on plain error reported ok")
	}
}
