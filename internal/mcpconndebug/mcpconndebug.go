// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package mcpconndebug provides a mechanism to configure debug knobs
// via the MCPCONNDEBUG environment variable.
//
// The value of MCPCONNDEBUG is a comma-separated list of key=value pairs.
// For example:
//
//	MCPCONNDEBUG=tracewire=1,pooltrace=1
package mcpconndebug

import (
	"fmt"
	"os"
	"strings"
)

const debugEnvKey = "MCPCONNDEBUG"

var debugParams map[string]string

func init() {
	var err error
	debugParams, err = parseDebug(os.Getenv(debugEnvKey))
	if err != nil {
		panic(err)
	}
}

// Value returns the value of the debug parameter with the given key.
// It returns an empty string if the key is not set.
func Value(key string) string {
	return debugParams[key]
}

func parseDebug(envValue string) (map[string]string, error) {
	if envValue == "" {
		return nil, nil
	}

	params := make(map[string]string)
	for part := range strings.SplitSeq(envValue, ",") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("MCPCONNDEBUG: invalid format: %q", part)
		}
		params[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return params, nil
}
