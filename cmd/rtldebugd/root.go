// Command rtldebugd hosts the debug server alongside a running
// simulation: it wires a transport link, an agent, and the command
// dispatcher together, and optionally exposes a loopback JSON health
// router for operators.
package main

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"
)

var rootCmd = &cobra.Command{
	Use:   "rtldebugd",
	Short: "Debug server for a running hardware simulation",
}

func init() {
	_ = godotenv.Load()
}

// Execute runs the root command, exiting the process on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		atexit.Exit(1)
	}
}

// main exits through atexit.Exit so the handlers serve registers (event
// log write, spool database flush) run before the process ends.
func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	Execute()
	atexit.Exit(0)
}
