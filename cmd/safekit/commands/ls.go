package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/systmms/safekit/internal/safe"
)

func NewLsCommand(rt *Runtime) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List keys without revealing values",
		Long: `List every key in the safe with its storage kind. No password is
needed; encrypted values stay sealed.

Examples:
  safekit ls
  safekit ls --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := rt.OpenStore()
			if err != nil {
				return err
			}
			projection := st.Projection()

			if jsonOutput {
				type listedKey struct {
					Key  string `json:"key"`
					Type string `json:"type"`
				}
				out := struct {
					Entries []listedKey `json:"entries"`
					Total   int         `json:"total"`
				}{Entries: []listedKey{}, Total: projection.Total}
				for _, e := range projection.Entries {
					out.Entries = append(out.Entries, listedKey{Key: e.Key, Type: e.Kind.String()})
				}
				encoder := json.NewEncoder(os.Stdout)
				encoder.SetIndent("", "  ")
				return encoder.Encode(out)
			}

			if len(projection.Entries) == 0 {
				fmt.Println("No entries in safe")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tTYPE")
			fmt.Fprintln(w, "---\t----")
			for _, e := range projection.Entries {
				label := "PLAIN"
				if e.Kind == safe.KindEncrypted {
					label = "ENC"
				}
				fmt.Fprintf(w, "%s\t%s\n", e.Key, label)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Printf("\n%d entries (%d plain, %d encrypted)\n", projection.Total, projection.Plain, projection.Encrypted)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output the listing as JSON")

	return cmd
}
