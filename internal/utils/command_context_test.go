package utils_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/courseops/reposync/internal/utils"
)

func TestCommandContextAccessorRoundTripsConfigurationFilePath(testInstance *testing.T) {
	accessor := utils.NewCommandContextAccessor()

	updatedContext := accessor.WithConfigurationFilePath(context.Background(), "/etc/reposync/config.yaml")
	configurationFilePath, available := accessor.ConfigurationFilePath(updatedContext)
	require.True(testInstance, available)
	require.Equal(testInstance, "/etc/reposync/config.yaml", configurationFilePath)
}

func TestCommandContextAccessorHandlesMissingValues(testInstance *testing.T) {
	accessor := utils.NewCommandContextAccessor()

	_, availableFromEmptyContext := accessor.ConfigurationFilePath(context.Background())
	require.False(testInstance, availableFromEmptyContext)

	_, availableFromNilContext := accessor.ConfigurationFilePath(nil)
	require.False(testInstance, availableFromNilContext)

	updatedContext := accessor.WithConfigurationFilePath(nil, "config.yaml")
	configurationFilePath, available := accessor.ConfigurationFilePath(updatedContext)
	require.True(testInstance, available)
	require.Equal(testInstance, "config.yaml", configurationFilePath)
}
