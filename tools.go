//go:build tools
// +build tools

// Package tools pins tool dependencies (mockgen for go:generate) in go.mod.
package tools

import (
	_ "go.uber.org/mock/mockgen"
)
