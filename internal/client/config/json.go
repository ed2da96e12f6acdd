package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/avolkov/snapsync/internal/flagx"
	"github.com/avolkov/snapsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like "3s"
// or as integer nanoseconds.
type JsonConfig struct {
	ServerEndpointURL   string         `json:"server_endpoint_url"`
	DatabaseDSN         string         `json:"database_dsn"`
	AccessToken         string         `json:"access_token"`
	OnlineCheckInterval timex.Duration `json:"online_check_interval"`
	DebounceWindow      timex.Duration `json:"debounce_window"`
}

// parseJson overlays Config with values loaded from the JSON file selected
// by the -c/-config flags. When no file is given, the function returns
// without touching cfg. Read and unmarshal errors panic; the intended usage
// is defaults -> parseJson -> parseFlags, later stages overriding earlier
// ones.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerEndpointURL != "" {
		cfg.ServerEndpointURL = jc.ServerEndpointURL
	}
	if jc.DatabaseDSN != "" {
		cfg.DatabaseDSN = jc.DatabaseDSN
	}
	if jc.AccessToken != "" {
		cfg.AccessToken = jc.AccessToken
	}
	if jc.OnlineCheckInterval.Duration != 0 {
		cfg.OnlineCheckInterval = time.Duration(jc.OnlineCheckInterval.Duration)
	}
	if jc.DebounceWindow.Duration != 0 {
		cfg.DebounceWindow = time.Duration(jc.DebounceWindow.Duration)
	}
}
