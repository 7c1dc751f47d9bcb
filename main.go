package main

import (
	"github.com/ColonelBlimp/energyvad/cmd"
	"github.com/ColonelBlimp/energyvad/internal/recovery"
)

func main() {
	defer recovery.HandlePanic()
	cmd.Execute()
}
