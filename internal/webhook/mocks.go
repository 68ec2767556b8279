package webhook

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockDispatcher struct {
	mock.Mock
}

var _ DispatcherInterface = (*MockDispatcher)(nil)

func (m *MockDispatcher) Dispatch(ctx context.Context, url, secret string, payload Payload) Result {
	args := m.Called(ctx, url, secret, payload)
	return args.Get(0).(Result)
}
