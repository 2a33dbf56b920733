package main

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/content-extractor/constants"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Probe every strategy's tools and backends",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, _, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		health := a.Registry.HealthCheckAll(cmd.Context())
		if flagJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(health)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "STRATEGY\tSTATUS")
		for _, s := range constants.AllStrategies() {
			status := "unavailable"
			if health[s] {
				status = "ok"
			}
			fmt.Fprintf(tw, "%s\t%s\n", s, status)
		}
		return tw.Flush()
	},
}

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List strategies with their extensions and time budgets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, _, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		exts := make(map[constants.Strategy][]string)
		for ext, s := range constants.ExtensionStrategies {
			exts[s] = append(exts[s], ext)
		}
		rules := a.Registry.Policy().Rules
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "STRATEGY\tTIMEOUT\tEXTENDED\tEXTENSIONS")
		for _, s := range constants.AllStrategies() {
			list := exts[s]
			slices.Sort(list)
			r := rules[s]
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s, r.Timeout, r.ExtendedTimeout, strings.Join(list, ","))
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(healthCmd, strategiesCmd)
	healthCmd.Flags().BoolVar(&flagJSON, "json", false, "Print the health map as JSON")
}
