// internal/config/config.go
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
)

var (
	currentConfig *AppConfig
	configMutex   sync.RWMutex
	configFile    string
)

// AppConfig holds everything the editor server needs, including the
// runtime-changeable generation provider settings.
type AppConfig struct {
	Port         string `json:"port"`
	GeminiAPIKey string `json:"gemini_api_key,omitempty"`
	DataDir      string `json:"data_dir"`
	StaticDir    string `json:"static_dir"`
	LogDir       string `json:"log_dir"`
	DebugMode    bool   `json:"debug_mode"`

	// Content generation provider settings.
	GenProvider string            `json:"gen_provider"`
	GenConfig   map[string]string `json:"gen_config"`
}

// Config is the base configuration read from the environment.
type Config struct {
	Port         string
	GeminiAPIKey string
	DataDir      string
	StaticDir    string
	LogDir       string
	DebugMode    bool
}

// Load reads the base configuration from the environment. A .env file is
// honored when present.
func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		Port:         getEnv("PORT", "8080"),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		DataDir:      getEnvPath("DATA_DIR", "data"),
		StaticDir:    getEnvPath("STATIC_DIR", "static"),
		LogDir:       getEnvPath("LOG_DIR", "logs"),
		DebugMode:    getEnvBool("DEBUG_MODE", true),
	}

	if config.GeminiAPIKey == "" {
		log.Println("warning: GEMINI_API_KEY is not set, content generation stays disabled until configured")
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvPath(key, defaultValue string) string {
	path := getEnv(key, defaultValue)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			fmt.Printf("warning: create directory %s: %v\n", path, err)
		}
	}
	return path
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value == "true" || value == "1" || value == "yes"
}

// InitConfig loads the base configuration, merges any saved settings file
// on top of it, and persists the result.
func InitConfig(dataDir string) error {
	configFile = filepath.Join(dataDir, "config.json")

	baseConfig, err := Load()
	if err != nil {
		return err
	}

	configMutex.Lock()
	defer configMutex.Unlock()

	currentConfig = &AppConfig{
		Port:         baseConfig.Port,
		GeminiAPIKey: baseConfig.GeminiAPIKey,
		DataDir:      baseConfig.DataDir,
		StaticDir:    baseConfig.StaticDir,
		LogDir:       baseConfig.LogDir,
		DebugMode:    baseConfig.DebugMode,
		GenProvider:  "gemini",
		GenConfig: map[string]string{
			"api_key": baseConfig.GeminiAPIKey,
		},
	}

	// Saved provider settings survive restarts; paths and the port always
	// come from the environment.
	if _, err := os.Stat(configFile); !os.IsNotExist(err) {
		data, err := os.ReadFile(configFile)
		if err == nil {
			var savedConfig AppConfig
			if json.Unmarshal(data, &savedConfig) == nil {
				savedConfig.Port = baseConfig.Port
				savedConfig.DataDir = baseConfig.DataDir
				savedConfig.StaticDir = baseConfig.StaticDir
				savedConfig.LogDir = baseConfig.LogDir
				savedConfig.DebugMode = baseConfig.DebugMode

				if savedConfig.GenConfig != nil && savedConfig.GenConfig["api_key"] == "" {
					savedConfig.GenConfig["api_key"] = baseConfig.GeminiAPIKey
				}
				currentConfig = &savedConfig
			}
		}
	}

	return SaveConfig()
}

// GetCurrentConfig returns a copy of the current configuration.
func GetCurrentConfig() *AppConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if currentConfig == nil {
		baseConfig, _ := Load()
		return &AppConfig{
			Port:         baseConfig.Port,
			GeminiAPIKey: baseConfig.GeminiAPIKey,
			DataDir:      baseConfig.DataDir,
			StaticDir:    baseConfig.StaticDir,
			LogDir:       baseConfig.LogDir,
			DebugMode:    baseConfig.DebugMode,
			GenProvider:  "gemini",
			GenConfig: map[string]string{
				"api_key": baseConfig.GeminiAPIKey,
			},
		}
	}

	configCopy := *currentConfig
	return &configCopy
}

// UpdateGenConfig switches the generation provider settings and persists
// them.
func UpdateGenConfig(provider string, config map[string]string) error {
	configMutex.Lock()
	defer configMutex.Unlock()

	if currentConfig == nil {
		return fmt.Errorf("configuration is not initialized")
	}

	currentConfig.GenProvider = provider
	currentConfig.GenConfig = config

	return SaveConfig()
}

// SaveConfig writes the current configuration to the settings file.
func SaveConfig() error {
	if currentConfig == nil {
		return fmt.Errorf("no configuration to save")
	}

	dir := filepath.Dir(configFile)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(currentConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	return os.WriteFile(configFile, data, 0644)
}
