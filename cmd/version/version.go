// Package version holds the build version string printed by --version,
// mirroring the teacher's main.go Version field (there a literal string on
// the root cli.Command; here pulled out so cmd packages can reference it
// without importing main).
package version

// Version is the build version reported by `hakodl --version`.
const Version = "0.1.0"
