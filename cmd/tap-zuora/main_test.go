// Copyright (C) 2026 Stitch, Inc.
// See LICENSE for copying information.

package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/singer-io/tap-zuora/zuora"
)

func writeConfig(t *testing.T, values map[string]interface{}) string {
	t.Helper()
	data, err := json.Marshal(values)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func baseConfig() map[string]interface{} {
	return map[string]interface{}{
		"username":   "user",
		"password":   "pass",
		"start_date": "2024-01-01T00:00:00Z",
		"partner_id": "partner",
	}
}

func TestLoadConfig(t *testing.T) {
	log := zaptest.NewLogger(t)

	config, err := loadConfig(log, writeConfig(t, baseConfig()))
	require.NoError(t, err)
	require.False(t, config.zuora.UseRest)
	require.Equal(t, "user", config.zuora.Username)
	require.Equal(t, "partner", config.zuora.PartnerID)
	require.Equal(t, "2024-01-01T00:00:00Z", config.startDate)
	require.Zero(t, config.windowSize)
}

func TestLoadConfigAPIType(t *testing.T) {
	log := zaptest.NewLogger(t)

	// Only the exact value REST selects the synchronous driver.
	values := baseConfig()
	values["api_type"] = "REST"
	delete(values, "partner_id")
	config, err := loadConfig(log, writeConfig(t, values))
	require.NoError(t, err)
	require.True(t, config.zuora.UseRest)

	// Any other value means the batch driver.
	for _, apiType := range []string{"AQUA", "rest", "SOAP", ""} {
		values := baseConfig()
		values["api_type"] = apiType
		config, err := loadConfig(log, writeConfig(t, values))
		require.NoError(t, err, apiType)
		require.False(t, config.zuora.UseRest, apiType)
	}
}

func TestLoadConfigPartnerIDRequiredForBatch(t *testing.T) {
	values := baseConfig()
	delete(values, "partner_id")

	_, err := loadConfig(zaptest.NewLogger(t), writeConfig(t, values))
	require.Error(t, err)
	require.Contains(t, err.Error(), "partner_id")
}

func TestLoadConfigRequiredKeys(t *testing.T) {
	log := zaptest.NewLogger(t)

	values := baseConfig()
	delete(values, "password")
	_, err := loadConfig(log, writeConfig(t, values))
	require.Error(t, err)
	require.Contains(t, err.Error(), "credentials")

	values = baseConfig()
	delete(values, "start_date")
	_, err = loadConfig(log, writeConfig(t, values))
	require.Error(t, err)
	require.Contains(t, err.Error(), "start_date")
}

func TestLoadConfigOAuth(t *testing.T) {
	values := baseConfig()
	values["auth_type"] = "oauth"
	values["client_id"] = "cid"
	values["client_secret"] = "secret"

	config, err := loadConfig(zaptest.NewLogger(t), writeConfig(t, values))
	require.NoError(t, err)
	require.Equal(t, zuora.AuthOAuth, config.zuora.AuthType)
	require.Equal(t, "cid", config.zuora.Username)
	require.Equal(t, "secret", config.zuora.Password)
}

func TestLoadConfigWindowSize(t *testing.T) {
	values := baseConfig()
	values["window_size"] = 0.5

	config, err := loadConfig(zaptest.NewLogger(t), writeConfig(t, values))
	require.NoError(t, err)
	require.Equal(t, 12*time.Hour, config.windowSize)
}
