// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package llm

// DefaultHTTPOptions is the baseline merged into every ChatHTTP body.
func DefaultHTTPOptions() Options {
	return Options{
		"temperature": 0.1,
		"seed":        0,
		"stream":      false,
	}
}

// MergeOptions copies layers into a new map in order; a key in a later
// layer replaces the same key from an earlier one. Nil layers are skipped.
func MergeOptions(layers ...Options) Options {
	size := 0
	for _, layer := range layers {
		size += len(layer)
	}
	merged := make(Options, size)
	for _, layer := range layers {
		for k, v := range layer {
			merged[k] = v
		}
	}
	return merged
}
