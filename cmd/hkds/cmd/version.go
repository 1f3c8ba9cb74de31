package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kdflabs/hkds-go/pkg/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the hkds CLI version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(version.Full())
		return nil
	},
}
