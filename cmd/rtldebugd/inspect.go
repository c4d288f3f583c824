package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/syifan/goseth"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [item-path]",
	Short: "Dump the built-in demo design's hierarchy, or one item, as JSON",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runInspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(_ *cobra.Command, args []string) error {
	m, _ := buildDemoModel()

	serializer := goseth.NewSerializer()
	serializer.SetRoot(m)
	serializer.SetMaxDepth(3)

	if len(args) == 1 {
		if err := serializer.SetEntryPoint(entryPointFields(args[0])); err != nil {
			return err
		}
	}

	return serializer.Serialize(os.Stdout)
}

// entryPointFields maps a dotted item-path argument (e.g. "Items.top
// clk") into the field-name segments goseth's SetEntryPoint walks,
// mirroring listFieldValue's "comp_name.field_name" splitting.
func entryPointFields(arg string) []string {
	return strings.Split(arg, ".")
}
