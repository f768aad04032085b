package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newPOSCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pos",
		Short: "List the part-of-speech table, user dictionaries included",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			dict, err := loadDictionary(cfg)
			if err != nil {
				return err
			}

			w := bufio.NewWriter(cmd.OutOrStdout())
			for id := range dict.POSSize() {
				fmt.Fprintf(w, "%d\t%s\n", id, strings.Join(dict.POSString(int16(id)), ","))
			}
			return w.Flush()
		},
	}
}
