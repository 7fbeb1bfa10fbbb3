package kyc

import (
	"os"

	"gopkg.in/yaml.v3"
)

// ProviderConfig describes a generic HTTP identity vendor.
type ProviderConfig struct {
	Name            string          `yaml:"name"`
	Enabled         bool            `yaml:"enabled"`
	APIKey          string          `yaml:"api_key"`
	APISecret       string          `yaml:"api_secret,omitempty"`
	AuthType        string          `yaml:"auth_type"`
	AuthHeader      string          `yaml:"auth_header"`
	BaseURL         string          `yaml:"base_url"`
	Endpoints       EndpointsConfig `yaml:"endpoints"`
	RequestConfig   RequestConfig   `yaml:"request_config,omitempty"`
	ResponseMapping ResponseMapping `yaml:"response_mapping"`
}

// EndpointsConfig holds one path per supported document type. An empty path
// means the vendor does not support that document. {reference} in GetStatus
// is replaced with the provider reference.
type EndpointsConfig struct {
	NIN            string `yaml:"nin,omitempty"`
	Passport       string `yaml:"passport,omitempty"`
	DriversLicense string `yaml:"drivers_license,omitempty"`
	VotersCard     string `yaml:"voters_card,omitempty"`
	Document       string `yaml:"document,omitempty"`
	GetStatus      string `yaml:"get_status"`
}

// RequestConfig renames request fields to what the vendor expects. Keys are
// document_number, first_name, last_name, dob, document_type and file_url.
type RequestConfig struct {
	ContentType  string            `yaml:"content_type,omitempty"`
	FieldMapping map[string]string `yaml:"field_mapping,omitempty"`
}

// ResponseMapping locates values in the vendor response using dotted paths.
type ResponseMapping struct {
	StatusField    string   `yaml:"status_field"`
	ReferenceField string   `yaml:"reference_field"`
	FirstNameField string   `yaml:"first_name_field"`
	LastNameField  string   `yaml:"last_name_field"`
	FoundValues    []string `yaml:"found_values"`
	NoRecordValues []string `yaml:"no_record_values"`
	PendingValues  []string `yaml:"pending_values"`
	FailedValues   []string `yaml:"failed_values"`
}

type KYCConfig struct {
	Providers []ProviderConfig `yaml:"providers"`
}

func LoadConfig(filepath string) (*KYCConfig, error) {
	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, err
	}
	return LoadConfigFromBytes(data)
}

func LoadConfigFromBytes(data []byte) (*KYCConfig, error) {
	var config KYCConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, err
	}
	return &config, nil
}
