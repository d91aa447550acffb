package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	dryRun     bool
	outputJSON bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "kv-reconcile",
		Short:        "Import legacy Redis records into the sipenduk store and repair resident statuses",
		SilenceUsage: true,
	}
	root.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "report what would change and roll back")
	root.PersistentFlags().BoolVar(&outputJSON, "json", false, "print the report as JSON")

	root.AddCommand(&cobra.Command{
		Use:   "import",
		Short: "Import penduduk/kk/anggota_kk/kematian/pindah/user/pengumuman keys",
		Args:  cobra.NoArgs,
		RunE:  runImportCmd,
	})
	root.AddCommand(&cobra.Command{
		Use:   "repair",
		Short: "Recompute resident status from death and departure records",
		Args:  cobra.NoArgs,
		RunE:  runRepairCmd,
	})
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
