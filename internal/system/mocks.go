package system

import (
	"context"
	"strings"

	"github.com/stretchr/testify/mock"
)

// MockRunner is a mock implementation of the Runner interface.
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, name string, args ...string) error {
	ret := m.Called(name, args)
	return ret.Error(0)
}

func (m *MockRunner) Output(ctx context.Context, name string, args ...string) (string, error) {
	ret := m.Called(name, args)
	return ret.String(0), ret.Error(1)
}

// CommandLines returns every recorded invocation as "name arg1 arg2 ...",
// in call order.
func (m *MockRunner) CommandLines() []string {
	var lines []string
	for _, c := range m.Calls {
		name, _ := c.Arguments.Get(0).(string)
		args, _ := c.Arguments.Get(1).([]string)
		lines = append(lines, strings.Join(append([]string{name}, args...), " "))
	}
	return lines
}
