package cmd

import (
	"fmt"

	"github.com/fwojciec/pgcopy"
	"github.com/spf13/cobra"
)

// schemaCmd represents the schema command
var schemaCmd = &cobra.Command{
	Use:   "schema <types>",
	Short: "Print the Arrow schema inferred for PostgreSQL column types",
	Long: `Print the Arrow schema the codec infers for a comma-separated list of
PostgreSQL column types.

Example:
  pgcopy schema int4,text,numeric[]`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rootType, err := pgcopy.ParseColumnTypes(args[0])
		if err != nil {
			return err
		}
		schema, err := pgcopy.InferSchema(rootType)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), schema)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
