package neo4jdb

import (
	"testing"

	"github.com/yungbote/dealgraph-backend/internal/platform/logger"
)

func TestNewWithoutURIIsDisabled(t *testing.T) {
	c, err := New(logger.Nop(), Config{})
	if err != nil || c != nil {
		t.Fatalf("expected disabled client, got %v %v", c, err)
	}
	if err := c.Close(nil); err != nil {
		t.Fatalf("Close on nil client: %v", err)
	}
}

func TestNewRequiresLogger(t *testing.T) {
	if _, err := New(nil, Config{URI: "bolt://localhost:7687"}); err == nil {
		t.Fatalf("expected error")
	}
}
