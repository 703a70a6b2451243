package main

import (
	"os"

	"github.com/AaroSnid/stm32-driver-sync/cmd"
)

func main() {
	os.Exit(cmd.Main())
}
