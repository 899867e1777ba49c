package config

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gopkg.in/yaml.v3"
)

func getValidRuntimeConfig() RuntimeConfig {
	conf := DefaultConfig()
	return RuntimeConfig{
		Detection: conf.Detection,
		Display:   conf.Display,
		NightCap:  conf.NightCap,
	}
}

func writeInitialConfig(t *testing.T) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "presenced.yml")
	data, err := yaml.Marshal(DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to marshal initial config: %v", err)
	}
	if err := os.WriteFile(configFile, data, 0o644); err != nil {
		t.Fatalf("Failed to write initial config: %v", err)
	}
	return configFile
}

func TestConfigHandler_Get(t *testing.T) {
	configFile := writeInitialConfig(t)
	handler := ConfigHandler(configFile)

	req := httptest.NewRequest(http.MethodGet, "/api/config", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var got RuntimeConfig
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, 400, got.Detection.ThresholdMM)
	assert.Equal(t, "quintic", got.Display.FadeEasing)
}

func TestConfigHandler_MethodNotAllowed(t *testing.T) {
	configFile := writeInitialConfig(t)
	handler := ConfigHandler(configFile)

	req := httptest.NewRequest(http.MethodDelete, "/api/config", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestConfigHandler_SetValidation(t *testing.T) {
	tests := []struct {
		name         string
		payload      func() RuntimeConfig
		wantStatus   int
		wantErrorMsg string
		shouldModify bool
	}{
		{
			name: "Valid Update",
			payload: func() RuntimeConfig {
				c := getValidRuntimeConfig()
				c.Detection.ThresholdMM = 600
				c.Display.FadeInDuration = 4 * time.Second
				return c
			},
			wantStatus:   http.StatusOK,
			shouldModify: true,
		},
		{
			name: "Invalid Threshold",
			payload: func() RuntimeConfig {
				c := getValidRuntimeConfig()
				c.Detection.ThresholdMM = -5
				return c
			},
			wantStatus:   http.StatusBadRequest,
			wantErrorMsg: "ThresholdMM must be positive",
		},
		{
			name: "Unknown Easing",
			payload: func() RuntimeConfig {
				c := getValidRuntimeConfig()
				c.Display.FadeEasing = "bounce"
				return c
			},
			wantStatus:   http.StatusBadRequest,
			wantErrorMsg: "FadeEasing must be one of",
		},
		{
			name: "Inverted Brightness Bounds",
			payload: func() RuntimeConfig {
				c := getValidRuntimeConfig()
				c.Display.MinBrightness = 200
				c.Display.MaxBrightness = 100
				return c
			},
			wantStatus:   http.StatusBadRequest,
			wantErrorMsg: "must be greater than",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configFile := writeInitialConfig(t)
			handler := ConfigHandler(configFile)

			body, err := json.Marshal(tt.payload())
			assert.NoError(t, err)

			req := httptest.NewRequest(http.MethodPost, "/api/config", bytes.NewReader(body))
			rec := httptest.NewRecorder()
			handler(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantErrorMsg != "" {
				assert.Contains(t, rec.Body.String(), tt.wantErrorMsg)
			}

			onDisk, err := ReadConfig(configFile, false)
			assert.NoError(t, err, "config file must stay valid after any request")
			if tt.shouldModify {
				assert.Equal(t, 600, onDisk.Detection.ThresholdMM)
				assert.Equal(t, 4*time.Second, onDisk.Display.FadeInDuration)
			} else {
				assert.Equal(t, 400, onDisk.Detection.ThresholdMM, "rejected update must not touch the file")
			}
		})
	}
}

func TestConfigHandler_PreservesBrightnessPath(t *testing.T) {
	configFile := writeInitialConfig(t)
	handler := ConfigHandler(configFile)

	// The client cannot see or change the hardware path; whatever it
	// sends, the on-disk value survives.
	payload := getValidRuntimeConfig()
	payload.Display.BrightnessPath = "/dev/null"
	body, _ := json.Marshal(payload)

	req := httptest.NewRequest(http.MethodPost, "/api/config", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	onDisk, err := ReadConfig(configFile, false)
	assert.NoError(t, err)
	assert.True(t, strings.HasPrefix(onDisk.Display.BrightnessPath, "/sys/class/backlight/"),
		"got %q", onDisk.Display.BrightnessPath)
}
