package mocks

import (
	"context"

	"github.com/benmeehan/photogps/pkg/exiftool"
	"github.com/stretchr/testify/mock"
)

// MockMetadataClient is a mock implementation of the exiftool.Client interface
type MockMetadataClient struct {
	mock.Mock
}

func (m *MockMetadataClient) ReadTimestampAndGPS(ctx context.Context, path string) (exiftool.Metadata, error) {
	args := m.Called(ctx, path)
	return args.Get(0).(exiftool.Metadata), args.Error(1)
}

func (m *MockMetadataClient) WriteGPS(ctx context.Context, current exiftool.Metadata, point exiftool.Point, overwrite bool) error {
	args := m.Called(ctx, current, point, overwrite)
	return args.Error(0)
}

func (m *MockMetadataClient) Close() error {
	args := m.Called()
	return args.Error(0)
}
