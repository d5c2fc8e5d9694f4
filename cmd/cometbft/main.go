package main

import (
	"github.com/ASISBUSINESS-ENTERPRISE/cometbft/cmd/cometbft/cmd"
)

func main() {
	cmd.Execute()
}
