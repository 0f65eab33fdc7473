package cmd

import (
	"fmt"
	"os"

	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/fwojciec/pgcopy"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query <sql>",
	Short: "Run a query and save the result as an Arrow IPC stream file",
	Long: `Execute a query through COPY TO STDOUT (FORMAT binary) and write the
decoded result as an Arrow IPC stream file.

The connection string comes from --dsn, PGCOPY_DSN, or the config file.

Example:
  pgcopy query --dsn postgres://localhost/mydb --out users.arrow "SELECT * FROM users"`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dsn := viper.GetString("dsn")
		if dsn == "" {
			return fmt.Errorf("--dsn is required (or set PGCOPY_DSN)")
		}
		outPath := viper.GetString("out")
		if outPath == "" {
			return fmt.Errorf("--out is required")
		}

		ctx := cmd.Context()
		pool, err := pgcopy.NewPool(ctx, dsn)
		if err != nil {
			return err
		}
		defer pool.Close()

		record, err := pool.QueryArrow(ctx, args[0])
		if err != nil {
			return err
		}
		defer record.Release()

		out, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer out.Close()

		writer := ipc.NewWriter(out, ipc.WithSchema(record.Schema()))
		defer writer.Close()
		if err := writer.Write(record); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", record.NumRows(), outPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)

	queryCmd.Flags().String("dsn", "", "PostgreSQL connection string")
	queryCmd.Flags().String("out", "", "output Arrow IPC file path")
	_ = viper.BindPFlag("dsn", queryCmd.Flags().Lookup("dsn"))
	_ = viper.BindPFlag("out", queryCmd.Flags().Lookup("out"))
}
