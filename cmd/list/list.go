package list

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/scan-io-git/hdf-tools/internal/converter"
	"github.com/scan-io-git/hdf-tools/internal/mappers"
)

var jsonOutput bool

// ListCmd represents the list command.
var ListCmd = &cobra.Command{
	Use:                   "list [--json]",
	SilenceUsage:          true,
	DisableFlagsInUseLine: true,
	Short:                 "List the supported scanners and API sources",
	Args:                  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return printScanners(cmd.OutOrStdout(), mappers.NewRegistry().Scanners(), jsonOutput)
	},
}

type scannerInfo struct {
	Name        string `json:"name"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

func printScanners(w io.Writer, scanners []converter.Scanner, asJSON bool) error {
	infos := make([]scannerInfo, 0, len(scanners))
	for _, s := range scanners {
		infos = append(infos, scannerInfo{Name: s.Name, Kind: s.Kind, Description: s.Description})
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "    ")
		return enc.Encode(infos)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tINPUT\tDESCRIPTION")
	for _, s := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Name, s.Kind, s.Description)
	}
	return tw.Flush()
}

func init() {
	ListCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the scanners as JSON.")
}
