// config/overlay.go
package config

import (
	"os"
	"strings"
)

const DataDirEnv = "ECONSTATS_DATA_DIR"

// OverlayEnv applies environment overrides on top of the file config.
func OverlayEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(DataDirEnv)); v != "" {
		cfg.App.DataDir = v
	}
	if v := strings.TrimSpace(os.Getenv("ECONSTATS_QWI_HEADLESS")); v != "" {
		cfg.Sources.QWI.Headless = v != "0" && strings.ToLower(v) != "false"
	}
}
