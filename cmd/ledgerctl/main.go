package main

import (
	"fmt"
	"os"

	"github.com/JonMunkholm/fuelledger/internal/cli"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Overload()

	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
