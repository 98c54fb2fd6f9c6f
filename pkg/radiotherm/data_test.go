package radiotherm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/andreweacott/radiotherm-coordinator/pkg/radiotherm"
	"github.com/andreweacott/radiotherm-coordinator/pkg/radiotherm/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// TestGetData_WithoutHumidity tests a CT50 style fetch
func TestGetData_WithoutHumidity(t *testing.T) {
	mockAPI := &mocks.MockDeviceAPI{}
	mockAPI.ExpectTstat(radiotherm.TstatState{Temp: 70.5, TMode: radiotherm.ModeHeat})

	update, err := radiotherm.GetData(context.Background(), mockAPI, false)
	require.NoError(t, err)

	assert.Equal(t, 70.5, update.Tstat.Temp)
	assert.Nil(t, update.Humidity)
	mockAPI.AssertNotCalled(t, "Humidity", mock.Anything)
}

// TestGetData_WithHumidity tests a CT80 style fetch
func TestGetData_WithHumidity(t *testing.T) {
	mockAPI := &mocks.MockDeviceAPI{}
	mockAPI.ExpectTstat(radiotherm.TstatState{Temp: 70.5})
	mockAPI.On("Humidity", mock.Anything).Return(41.0, nil)

	update, err := radiotherm.GetData(context.Background(), mockAPI, true)
	require.NoError(t, err)

	require.NotNil(t, update.Humidity)
	assert.Equal(t, 41.0, *update.Humidity)
}

// TestGetData_PreservesErrorKind tests that wrapping keeps the error classifiable
func TestGetData_PreservesErrorKind(t *testing.T) {
	mockAPI := &mocks.MockDeviceAPI{}
	mockAPI.ExpectTstatError(&radiotherm.TstatError{Message: "bad value"})

	_, err := radiotherm.GetData(context.Background(), mockAPI, false)
	require.Error(t, err)
	assert.Equal(t, radiotherm.KindDeviceBusy, radiotherm.Classify(err))
	assert.Equal(t, "bad value", radiotherm.Detail(err))
}

// TestGetInitData tests gathering of static device data
func TestGetInitData(t *testing.T) {
	mockAPI := &mocks.MockDeviceAPI{HostName: "10.0.0.5"}
	mockAPI.ExpectInitData("Kitchen", "5cdad4123456", "CT50 V1.94")

	init, err := radiotherm.GetInitData(context.Background(), mockAPI)
	require.NoError(t, err)

	assert.Equal(t, "Kitchen", init.Name)
	assert.Equal(t, "5c:da:d4:12:34:56", init.MAC)
	assert.Equal(t, "CT50 V1.94", init.Model)
	assert.Equal(t, "1.04.84", init.FirmwareVersion)
	assert.Equal(t, 113, init.APIVersion)
	assert.Same(t, mockAPI, init.Device)
}

// TestGetInitData_Error tests that the first failing read aborts setup
func TestGetInitData_Error(t *testing.T) {
	mockAPI := &mocks.MockDeviceAPI{}
	mockAPI.On("Name", mock.Anything).Return("", errors.New("no route to host"))

	_, err := radiotherm.GetInitData(context.Background(), mockAPI)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read name")
}
