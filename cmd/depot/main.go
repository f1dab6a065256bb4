package main

import (
	"github.com/openteller/depot/cmd/depot/cmd"
	"github.com/openteller/depot/internal/common"
)

func main() {
	common.ConfigureLogging()
	cmd.Execute()
}
