package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/perjlieb/qutip"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of qutip",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("qutip version %s\n", strings.TrimSpace(qutip.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
