// Package main is the entry point for the codexec server binary.
//
// Usage:
//
//	codexec run       start all listeners and the session sweeper
//	codexec grpcui    print the configured introspection address
package main

import "github.com/codexec/codexec/internal/cli"

func main() {
	cli.Execute()
}
