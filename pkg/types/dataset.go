// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// Dataset holds metadata and file paths for an acquired dataset file.
type Dataset struct {
	// Slug is a filesystem-safe identifier derived from the source name
	// (e.g. "ns-school-immunization").
	Slug string `json:"slug" yaml:"slug"`

	// SourceURL is the URL from which the CSV was downloaded.
	SourceURL string `json:"source_url" yaml:"source_url"`

	// RawPath is the local filesystem path to the downloaded CSV.
	RawPath string `json:"raw_path" yaml:"raw_path"`

	// CleanPath is the local filesystem path to the transformed CSV.
	// Empty until the transform stage has run.
	CleanPath string `json:"clean_path,omitempty" yaml:"clean_path,omitempty"`

	// FetchedAt records when the download completed.
	FetchedAt time.Time `json:"fetched_at" yaml:"fetched_at"`

	// SHA256 is the hex checksum of the raw file contents.
	SHA256 string `json:"sha256" yaml:"sha256"`

	// SizeBytes is the raw file size.
	SizeBytes int64 `json:"size_bytes" yaml:"size_bytes"`

	// Rows is the data row count from a post-download parse, excluding the header.
	Rows int `json:"rows" yaml:"rows"`

	// Columns lists the header columns as they appear in the raw file.
	Columns []string `json:"columns" yaml:"columns"`

	// Source identifies which backend provided the file ("kaggle" or "url").
	Source string `json:"source,omitempty" yaml:"source,omitempty"`
}
