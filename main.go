package main

import (
	_ "embed"

	"github.com/lastphoenx/entropy-watcher-und-clamav-scanner/cmd"
)

//go:embed config/config.yaml
var c string

func main() {
	cmd.Execute(c)
}
