// Package main is the entry point for the sb3pack CLI.
package main

import "github.com/morrisclay/sb3pack/internal/cli"

func main() {
	cli.Execute()
}
