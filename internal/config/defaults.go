package config

import "time"

// defaultHTTPTimeout bounds each repository API call. Long enough for the
// sandbox host's slow publish action, short enough that a hung connection
// does not block the CLI indefinitely.
const defaultHTTPTimeout = 30 * time.Second

// defaultURL is the sandbox repository host. Production deployments set
// provider.url explicitly; defaulting to the sandbox means a misconfigured
// install cannot publish to the real archive by accident.
const defaultURL = "https://sandbox.zenodo.org"

// defaultRights maps the questionnaire's license option paths onto the
// repository's rights vocabulary.
var defaultRights = map[string]string{
	"dataset_license_types/71":  "cc-by-4.0",
	"dataset_license_types/73":  "cc-by-nc-4.0",
	"dataset_license_types/74":  "cc-by-nd-4.0",
	"dataset_license_types/75":  "cc-by-sa-4.0",
	"dataset_license_types/cc0": "cc-zero",
}

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	rights := make(map[string]string, len(defaultRights))
	for k, v := range defaultRights {
		rights[k] = v
	}

	return &Config{
		Provider: ProviderConfig{
			URL:            defaultURL,
			ExportFormat:   "pdf",
			ExportFilename: "rdmo_dmp",
			ResourceType:   "publication-datamanagementplan",
			UploadType:     "dataset",
			Rights:         rights,
		},
		Network: NetworkConfig{
			Timeout: defaultHTTPTimeout.String(),
		},
		Logging: LoggingConfig{
			// Empty log_format means auto: text on a terminal, JSON otherwise.
			LogLevel: "info",
		},
	}
}
