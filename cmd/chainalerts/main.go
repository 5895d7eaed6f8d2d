package main

import (
	"chain-alerts/internal/cli"
)

func main() {
	cli.Execute()
}
