// Package mocks provides test doubles for the radiotherm package.
package mocks

import (
	"context"
	"time"

	"github.com/andreweacott/radiotherm-coordinator/pkg/radiotherm"
	"github.com/stretchr/testify/mock"
)

// MockDeviceAPI is a mock implementation of the DeviceAPI interface
type MockDeviceAPI struct {
	mock.Mock
	HostName string
}

var _ radiotherm.DeviceAPI = &MockDeviceAPI{}

// Host implements DeviceAPI.Host without recording a call
func (m *MockDeviceAPI) Host() string {
	return m.HostName
}

// Tstat implements DeviceAPI.Tstat
func (m *MockDeviceAPI) Tstat(ctx context.Context) (radiotherm.TstatState, error) {
	args := m.Called(ctx)
	return args.Get(0).(radiotherm.TstatState), args.Error(1)
}

// Humidity implements DeviceAPI.Humidity
func (m *MockDeviceAPI) Humidity(ctx context.Context) (float64, error) {
	args := m.Called(ctx)
	return args.Get(0).(float64), args.Error(1)
}

// Name implements DeviceAPI.Name
func (m *MockDeviceAPI) Name(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

// Sys implements DeviceAPI.Sys
func (m *MockDeviceAPI) Sys(ctx context.Context) (radiotherm.SysInfo, error) {
	args := m.Called(ctx)
	return args.Get(0).(radiotherm.SysInfo), args.Error(1)
}

// Model implements DeviceAPI.Model
func (m *MockDeviceAPI) Model(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockDeviceAPI) SetTargetHeat(ctx context.Context, temp float64) error {
	return m.Called(ctx, temp).Error(0)
}

func (m *MockDeviceAPI) SetTargetCool(ctx context.Context, temp float64) error {
	return m.Called(ctx, temp).Error(0)
}

func (m *MockDeviceAPI) SetMode(ctx context.Context, mode radiotherm.Mode) error {
	return m.Called(ctx, mode).Error(0)
}

func (m *MockDeviceAPI) SetFanMode(ctx context.Context, mode radiotherm.FanMode) error {
	return m.Called(ctx, mode).Error(0)
}

func (m *MockDeviceAPI) SetHold(ctx context.Context, hold bool) error {
	return m.Called(ctx, hold).Error(0)
}

func (m *MockDeviceAPI) SetTime(ctx context.Context, t time.Time) error {
	return m.Called(ctx, t).Error(0)
}

// ExpectTstat sets up expectation for Tstat to return the given state
func (m *MockDeviceAPI) ExpectTstat(state radiotherm.TstatState) *MockDeviceAPI {
	m.On("Tstat", mock.Anything).Return(state, nil)
	return m
}

// ExpectTstatError sets up expectation for Tstat to return an error
func (m *MockDeviceAPI) ExpectTstatError(err error) *MockDeviceAPI {
	m.On("Tstat", mock.Anything).Return(radiotherm.TstatState{}, err)
	return m
}

// ExpectInitData sets up expectations for the calls made by GetInitData
func (m *MockDeviceAPI) ExpectInitData(name, uuid, model string) *MockDeviceAPI {
	m.On("Name", mock.Anything).Return(name, nil)
	m.On("Sys", mock.Anything).Return(radiotherm.SysInfo{UUID: uuid, APIVersion: 113, FWVersion: "1.04.84"}, nil)
	m.On("Model", mock.Anything).Return(model, nil)
	return m
}
