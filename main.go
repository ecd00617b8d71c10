package main

import (
	"github.com/sidkik/smartsync/cmd"
	"github.com/sidkik/smartsync/cmd/util"
)

func main() {
	defer util.HandlePanic()
	cmd.Execute()
}
