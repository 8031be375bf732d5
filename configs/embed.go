package configs

import _ "embed"

// Default holds the built-in whalewatching configuration.
//
//go:embed whalewatching.yaml
var Default []byte
