package mocks

import (
	"context"

	"filelinker/internal/model"
	"filelinker/internal/service"
	"github.com/stretchr/testify/mock"
)

type MockStatsProvider struct {
	mock.Mock
}

func (m *MockStatsProvider) Stats(ctx context.Context) (model.Stats, error) {
	args := m.Called(ctx)
	return args.Get(0).(model.Stats), args.Error(1)
}

type MockManifestLoader struct {
	mock.Mock
}

func (m *MockManifestLoader) Enabled() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockManifestLoader) Load(ctx context.Context, code string) (*service.Manifest, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.Manifest), args.Error(1)
}
