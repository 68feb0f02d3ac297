//go:build cli
// +build cli

package main

import (
	_ "lendhub.GO/custom"

	"lendhub.GO/cmd"
	"lendhub.GO/config"
)

func main() {
	config.LoadEnv()
	cmd.Execute()
}
