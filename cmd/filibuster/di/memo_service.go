package di

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/filibuster-io/filibuster-go/internal/cache"
)

// FaultMemoService wraps the ristretto-backed memoization cache for
// fault-injected/service and fault-injected/method lookups.
type FaultMemoService struct {
	Memo *cache.BoolMemo
}

// Shutdown implements do.Shutdowner.
func (s *FaultMemoService) Shutdown() error {
	return s.Memo.Close()
}

// NewFaultMemo creates the BoolMemo cache.
func NewFaultMemo(_ do.Injector) (*FaultMemoService, error) {
	memo, err := cache.NewBoolMemo()
	if err != nil {
		return nil, fmt.Errorf("create fault memo cache: %w", err)
	}
	return &FaultMemoService{Memo: memo}, nil
}
