package types

import "time"

// HTTPConfig holds shared HTTP settings used by stages that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "immunization-etl/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// AcquisitionConfig holds settings for the acquisition stage.
type AcquisitionConfig struct {
	HTTPConfig `yaml:",inline"`

	// DownloadDelay is the delay between consecutive downloads (default 1s).
	DownloadDelay time.Duration `json:"download_delay" yaml:"download_delay"`

	// DataDir is the base directory for pipeline data (contains raw/,
	// metadata/, clean/, index/).
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// KaggleUsername and KaggleKey authenticate against Kaggle-hosted
	// mirrors. Both empty means anonymous access.
	KaggleUsername string `json:"kaggle_username,omitempty" yaml:"kaggle_username,omitempty"`
	KaggleKey      string `json:"kaggle_key,omitempty" yaml:"kaggle_key,omitempty"`

	// Progress enables a terminal progress bar during downloads.
	Progress bool `json:"progress" yaml:"progress"`
}

// TransformConfig holds settings for the transform stage.
type TransformConfig struct {
	// DataDir is the base directory for pipeline data (contains raw/, clean/).
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// MaxFailures caps how many rejected rows a run tolerates before the
	// file is treated as bad rather than merely dirty (default 50).
	MaxFailures int `json:"max_failures" yaml:"max_failures"`
}

// StoreConfig holds settings for the load and query stages.
type StoreConfig struct {
	// DataDir is the base directory for pipeline data (contains clean/, index/).
	DataDir string `json:"data_dir" yaml:"data_dir"`

	// MaxResults is the default maximum number of query results (default 50).
	MaxResults int `json:"max_results" yaml:"max_results"`
}

// PipelineConfig groups all stage configurations for the pipeline.
type PipelineConfig struct {
	Acquisition AcquisitionConfig `json:"acquisition" yaml:"acquisition"`
	Transform   TransformConfig   `json:"transform" yaml:"transform"`
	Store       StoreConfig       `json:"store" yaml:"store"`
}
