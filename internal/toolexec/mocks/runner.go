// Package mocks provides testify mocks for toolexec.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"clipdeck/internal/toolexec"
)

// Runner is a mock toolexec.Runner. Run is matched on (ctx, tool, args []string).
type Runner struct {
	mock.Mock
}

func (m *Runner) Run(ctx context.Context, tool toolexec.Tool, args ...string) (*toolexec.Result, error) {
	ret := m.Called(ctx, tool, args)
	var res *toolexec.Result
	if r := ret.Get(0); r != nil {
		res = r.(*toolexec.Result)
	}
	return res, ret.Error(1)
}

func (m *Runner) Probe(ctx context.Context, tool toolexec.Tool) (string, error) {
	ret := m.Called(ctx, tool)
	return ret.String(0), ret.Error(1)
}

// HasArg matches an argument slice containing want.
func HasArg(want string) any {
	return mock.MatchedBy(func(args []string) bool {
		for _, a := range args {
			if a == want {
				return true
			}
		}
		return false
	})
}

// ToolNamed matches a toolexec.Tool by display name.
func ToolNamed(name string) any {
	return mock.MatchedBy(func(t toolexec.Tool) bool { return t.Name == name })
}
