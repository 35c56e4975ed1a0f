package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/ductware/atomtx/internal/buildinfo"
)

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of atomtx",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("atomtx version %s\n", buildinfo.GetVersion())
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
