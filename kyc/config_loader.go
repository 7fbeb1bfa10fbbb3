package kyc

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// RegisterProvidersFromConfig registers a constructor for every enabled vendor
// in the YAML file at configPath and returns the names it registered.
func RegisterProvidersFromConfig(registry *Registry, configPath string) ([]string, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load provider config: %w", err)
	}
	return registerProviders(registry, config), nil
}

func RegisterProvidersFromConfigBytes(registry *Registry, data []byte) ([]string, error) {
	config, err := LoadConfigFromBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse provider config: %w", err)
	}
	return registerProviders(registry, config), nil
}

func registerProviders(registry *Registry, config *KYCConfig) []string {
	var names []string
	for _, providerConfig := range config.Providers {
		if !providerConfig.Enabled {
			logrus.Infof("Identity provider %s is disabled, skipping", providerConfig.Name)
			continue
		}
		if providerConfig.Name == "" {
			logrus.Warn("Identity provider without a name in config, skipping")
			continue
		}

		cfg := providerConfig
		registry.Register(cfg.Name, func() (Provider, error) {
			cfg.APIKey = expandEnvVar(cfg.APIKey)
			cfg.APISecret = expandEnvVar(cfg.APISecret)
			if err := validateProviderConfig(cfg); err != nil {
				return nil, err
			}
			return newConfigurableProvider(cfg), nil
		})
		names = append(names, cfg.Name)

		logrus.Infof("Registered identity provider from config: %s", cfg.Name)
	}
	return names
}

func expandEnvVar(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		envName := value[2 : len(value)-1]
		if envValue := os.Getenv(envName); envValue != "" {
			return envValue
		}
		return ""
	}
	return value
}

func validateProviderConfig(config ProviderConfig) error {
	if config.APIKey == "" {
		return fmt.Errorf("api_key is required")
	}
	if config.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	e := config.Endpoints
	if e.NIN == "" && e.Passport == "" && e.DriversLicense == "" && e.VotersCard == "" && e.Document == "" {
		return fmt.Errorf("at least one verification endpoint is required")
	}
	if e.Document != "" && e.GetStatus == "" {
		return fmt.Errorf("endpoints.get_status is required when documents are supported")
	}
	if config.ResponseMapping.StatusField == "" {
		return fmt.Errorf("response_mapping.status_field is required")
	}
	if len(config.ResponseMapping.FoundValues) == 0 {
		return fmt.Errorf("response_mapping.found_values is required")
	}
	return nil
}
