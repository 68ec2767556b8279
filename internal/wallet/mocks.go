package wallet

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockClient struct {
	mock.Mock
}

var _ ClientInterface = (*MockClient)(nil)

func (m *MockClient) GetWalletInfo(ctx context.Context) (*WalletInfo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*WalletInfo), args.Error(1)
}

func (m *MockClient) GetPayments(ctx context.Context, paymentID string) ([]DepositEntry, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]DepositEntry), args.Error(1)
}

func (m *MockClient) GetRecentTxs(ctx context.Context, params RecentTxsParams) (*RecentTxsResult, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*RecentTxsResult), args.Error(1)
}

func (m *MockClient) Transfer(ctx context.Context, params TransferParams) (*TransferResult, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*TransferResult), args.Error(1)
}

func (m *MockClient) MakeIntegratedAddress(ctx context.Context, paymentID string) (*IntegratedAddress, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*IntegratedAddress), args.Error(1)
}
