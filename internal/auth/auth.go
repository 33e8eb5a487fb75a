// Package auth provides the operator capability check.
//
// Every mutating operation (submit reading, request assessment, update
// thresholds, record maintenance) requires operator capability. The caller
// identity is an address supplied by the surrounding deployment layer;
// authenticating that identity (session, mTLS, signature) is the deployment
// layer's concern. This package only answers "does this address hold the
// operator capability?" so the check is injectable and testable rather than
// a hardcoded stub.
package auth

import (
	"context"
	"strings"
)

// Authorizer answers operator capability checks.
type Authorizer interface {
	IsOperator(ctx context.Context, addr string) bool
}

// OperatorSet is an Authorizer backed by a fixed allowlist of addresses.
type OperatorSet struct {
	addrs map[string]bool
}

// NewOperatorSet creates an allowlist authorizer. Addresses are compared
// case-insensitively.
func NewOperatorSet(addrs []string) *OperatorSet {
	set := make(map[string]bool, len(addrs))
	for _, a := range addrs {
		set[strings.ToLower(strings.TrimSpace(a))] = true
	}
	return &OperatorSet{addrs: set}
}

// IsOperator reports whether addr holds the operator capability.
func (s *OperatorSet) IsOperator(_ context.Context, addr string) bool {
	if addr == "" {
		return false
	}
	return s.addrs[strings.ToLower(addr)]
}

// AllowAll is an Authorizer that grants capability to every non-empty
// address. Test and local-dev use only.
type AllowAll struct{}

func (AllowAll) IsOperator(_ context.Context, addr string) bool {
	return addr != ""
}
