package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/pigmentlab/pigment/internal/utils"
	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Drop the embedding index tables",
	Long:  "Clears the Postgres embedding index. Record files on disk are untouched.",
	Run: func(cmd *cobra.Command, args []string) {
		runReset(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(resetCmd)
}

func runReset(ctx context.Context) {
	reader := bufio.NewReader(os.Stdin)
	if !confirm(reader, "⚠️  Are you sure you want to DROP the embedding index tables?") {
		fmt.Println("Aborted.")
		return
	}

	db := openStore(ctx)
	defer db.Close(context.Background())

	fmt.Println("🗑️  Clearing embedding index...")
	if err := db.Reset(ctx); err != nil {
		utils.Die("Failed to reset the embedding index", err)
	}
	fmt.Println("✨ Index Reset Complete.")
}

func confirm(r *bufio.Reader, prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	res, _ := r.ReadString('\n')
	res = strings.TrimSpace(strings.ToLower(res))
	return res == "y" || res == "yes"
}
