package cmd

import (
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/fwojciec/pgcopy"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// convertCmd represents the convert command
var convertCmd = &cobra.Command{
	Use:   "convert <input.bin> <output.arrow>",
	Short: "Decode a COPY binary file into an Arrow IPC stream file",
	Long: `Decode a file produced by COPY ... TO ... WITH (FORMAT binary) into an
Arrow IPC stream file. The column types must be declared with --types since
the COPY format does not carry them.

Example:
  pgcopy convert --types int4,text,numeric data.bin data.arrow`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		typeList := viper.GetString("types")
		if typeList == "" {
			return fmt.Errorf("--types is required")
		}
		rootType, err := pgcopy.ParseColumnTypes(typeList)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		record, err := pgcopy.ReadAll(data, rootType, memory.DefaultAllocator)
		if err != nil {
			return err
		}
		defer record.Release()

		out, err := os.Create(args[1])
		if err != nil {
			return err
		}
		defer out.Close()

		writer := ipc.NewWriter(out, ipc.WithSchema(record.Schema()))
		defer writer.Close()
		if err := writer.Write(record); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", record.NumRows(), args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().String("types", "", "comma-separated PostgreSQL column types, e.g. int4,text,numeric[]")
	_ = viper.BindPFlag("types", convertCmd.Flags().Lookup("types"))
}
