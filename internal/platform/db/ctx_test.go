package db

import (
	"context"
	"testing"
)

func TestTxFromContext_Empty(t *testing.T) {
	if tx := TxFromContext(context.Background()); tx != nil {
		t.Errorf("expected nil tx from empty context, got %v", tx)
	}
}

func TestTxFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBTxKey, "not-a-tx")
	if tx := TxFromContext(ctx); tx != nil {
		t.Errorf("expected nil tx for wrong value type, got %v", tx)
	}
}

func TestConnFromContext_Empty(t *testing.T) {
	if conn := ConnFromContext(context.Background()); conn != nil {
		t.Errorf("expected nil conn from empty context, got %v", conn)
	}
}

func TestConnFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), DBConnKey, 42)
	if conn := ConnFromContext(ctx); conn != nil {
		t.Errorf("expected nil conn for wrong value type, got %v", conn)
	}
}
