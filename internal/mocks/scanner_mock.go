package mocks

import (
	"github.com/stretchr/testify/mock"
)

// MockScanner is a mock implementation of the services.PhotoScanner interface
type MockScanner struct {
	mock.Mock
}

func (m *MockScanner) Scan(root string) ([]string, error) {
	args := m.Called(root)
	paths, _ := args.Get(0).([]string)
	return paths, args.Error(1)
}
