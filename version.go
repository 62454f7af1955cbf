package petriflow

import _ "embed"

//go:embed VERSION
var version string

// Version will return the petriflow release version
func Version() string {
	return version
}
