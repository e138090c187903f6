// Copyright 2026 The Hyperion Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeTempConfig(t, "port: 0\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8317, cfg.Port)
	assert.Equal(t, "experts.yaml", cfg.RegistryPath)
	assert.Equal(t, 1000, cfg.Classifier.CacheCapacity)
	assert.Equal(t, 0.4, cfg.Classifier.DomainThreshold)
	assert.Equal(t, "language", cfg.Classifier.DefaultDomain)
	assert.Equal(t, 0.6, cfg.Router.MultiExpertThreshold)
	assert.Equal(t, 3, cfg.Router.MaxExperts)
	assert.Equal(t, 60, cfg.Predictor.MinSimulations)
	assert.Equal(t, 150, cfg.Predictor.MaxSimulations)
	assert.Equal(t, 0.02, cfg.Predictor.ConvergenceEpsilon)
	assert.Equal(t, 0.5, cfg.Supervisor.SuccessRateFloor)
	assert.Equal(t, 0.3, cfg.Supervisor.EWMAAlpha)
	assert.Equal(t, "http://localhost:11434", cfg.Invoker.BaseURL)
}

func TestLoadConfigParsing(t *testing.T) {
	path := writeTempConfig(t, `
port: 9000
registry-path: fleet.yaml
classifier:
  cache-capacity: 50
  domain-threshold: 0.7
  default-domain: programming
router:
  multi-expert-threshold: 0.45
  max-experts: 2
predictor:
  min-simulations: 80
  max-simulations: 40
supervisor:
  success-rate-floor: 0.35
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "fleet.yaml", cfg.RegistryPath)
	assert.Equal(t, 50, cfg.Classifier.CacheCapacity)
	assert.Equal(t, 0.7, cfg.Classifier.DomainThreshold)
	assert.Equal(t, "programming", cfg.Classifier.DefaultDomain)
	assert.Equal(t, 0.45, cfg.Router.MultiExpertThreshold)
	assert.Equal(t, 2, cfg.Router.MaxExperts)
	// max is raised to min when the file puts them out of order
	assert.Equal(t, 80, cfg.Predictor.MinSimulations)
	assert.Equal(t, 80, cfg.Predictor.MaxSimulations)
	assert.Equal(t, 0.35, cfg.Supervisor.SuccessRateFloor)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestManagementKeyHashedOnLoad(t *testing.T) {
	path := writeTempConfig(t, "management-key: hunter2\n")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.True(t, looksLikeBcrypt(cfg.ManagementKey), "plaintext key should be hashed")
	assert.True(t, cfg.VerifyManagementKey("hunter2"))
	assert.False(t, cfg.VerifyManagementKey("wrong"))
}

func TestManagementKeyAlreadyHashed(t *testing.T) {
	hashed, err := hashSecret("sekrit")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hashed, "$2"))

	path := writeTempConfig(t, "management-key: "+hashed+"\n")
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	// No double hashing
	assert.Equal(t, hashed, cfg.ManagementKey)
	assert.True(t, cfg.VerifyManagementKey("sekrit"))
}

func TestVerifyManagementKeyEmpty(t *testing.T) {
	cfg := &Config{}
	assert.False(t, cfg.VerifyManagementKey(""))
	assert.False(t, cfg.VerifyManagementKey("anything"))
}
