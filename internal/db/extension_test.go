package db

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"
)

// closedPortDSN returns a DSN for a local port nothing listens on.
func closedPortDSN(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()
	return fmt.Sprintf("postgres://langchain:langchain@%s/langchain?sslmode=disable", addr)
}

func TestEnsureVectorExtensionUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if EnsureVectorExtension(ctx, closedPortDSN(t)) {
		t.Error("expected false when the server is unreachable")
	}
	// the caller keeps going after the warning
	if ctx.Err() != nil {
		t.Errorf("extension step should fail fast, got %v", ctx.Err())
	}
}

func TestEnsureVectorExtensionInvalidDSN(t *testing.T) {
	if EnsureVectorExtension(context.Background(), "postgres://%zz") {
		t.Error("expected false for a malformed DSN")
	}
}
