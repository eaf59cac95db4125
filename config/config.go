package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const keyEnv = "ENV"
const envLocal = "local"

type Config struct {
	config *viper.Viper
}

func Load() (*Config, error) {

	env := os.Getenv(keyEnv)
	if len(env) == 0 {
		env = envLocal
	}

	configPath, err := getConfigPath(env)

	viperConfig := viper.New()
	if err == nil {
		viperConfig.SetConfigFile(configPath)
		if err := viperConfig.ReadInConfig(); err != nil {
			slog.Warn(fmt.Sprintf("error reading config file, %s", err))
		}
	}
	viperConfig.AutomaticEnv()

	cfg := &Config{
		config: viperConfig,
	}

	return cfg, nil
}

func (c *Config) GetPort() string {
	port := c.config.GetString("PORT")
	if len(port) == 0 {
		port = c.config.GetString("server.port")
	}

	return port
}

// GetCatalogPath is the bbolt file holding indexed file records.
func (c *Config) GetCatalogPath() string {
	catalogPath := c.config.GetString("CATALOG_PATH")
	if len(catalogPath) == 0 {
		catalogPath = c.config.GetString("database.catalog_path")
	}

	return catalogPath
}

// GetIndexPath is the bleve directory backing the ranked preview search.
func (c *Config) GetIndexPath() string {
	indexPath := c.config.GetString("INDEX_PATH")
	if len(indexPath) == 0 {
		indexPath = c.config.GetString("database.index_path")
	}

	return indexPath
}

func (c *Config) GetOutputRoot() string {
	outputRoot := c.config.GetString("OUTPUT_ROOT")
	if len(outputRoot) == 0 {
		outputRoot = c.config.GetString("retrieval.output_root")
	}
	if len(outputRoot) == 0 {
		outputRoot = "output"
	}

	return outputRoot
}

// GetExcludeFolders returns the default folder names skipped during
// indexing when a request does not supply its own list.
func (c *Config) GetExcludeFolders() []string {
	excluded := c.config.GetString("EXCLUDE_FOLDERS")
	if len(excluded) == 0 {
		excluded = c.config.GetString("indexing.exclude_folders")
	}

	var folders []string
	for _, folder := range strings.Split(excluded, ",") {
		if folder = strings.TrimSpace(folder); len(folder) > 0 {
			folders = append(folders, folder)
		}
	}

	return folders
}

func getProjectRoot() (string, error) {
	currentDir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current working directory: %w", err)
	}

	for {
		configDir := filepath.Join(currentDir, "config")
		if info, err := os.Stat(configDir); err == nil && info.IsDir() {
			return currentDir, nil
		}

		parent := filepath.Dir(currentDir)

		if parent == currentDir {
			break
		}

		currentDir = parent
	}

	return "", fmt.Errorf("could not find project root (directory containing 'config' folder)")
}

func getConfigPath(env string) (string, error) {
	configFile := fmt.Sprintf("config.%s.yaml", env)

	projectRoot, err := getProjectRoot()
	if err != nil {
		slog.Warn("failed to find project root with config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("failed to find project root: %w", err)
	}
	configPath := filepath.Join(projectRoot, "config", configFile)
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		slog.Warn("failed to find config file within config directory, will use environment variables instead", "err", err.Error())
		return "", fmt.Errorf("config file does not exist: %s", configPath)
	}

	return configPath, nil
}
