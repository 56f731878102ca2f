// Package main provides the bloom CLI.
package main

import "github.com/mesh-intelligence/bloomstate/internal/cli"

func main() {
	cli.Execute()
}
