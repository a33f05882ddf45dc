package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oukeidos/fictra/internal/credentials"
	"github.com/oukeidos/fictra/internal/llm"
)

func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Show which provider API keys are set in the environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runEnvStatus(cmd)
			return nil
		},
	}
}

// runEnvStatus reports the variable each key came from. Keys are never
// printed.
func runEnvStatus(cmd *cobra.Command) {
	_, sources := credentials.FromEnv(lookupEnv)
	found := make(map[llm.ProviderName]string, len(sources))
	for _, s := range sources {
		found[s.Provider] = s.Variable
	}

	out := cmd.OutOrStdout()
	for _, p := range llm.Providers() {
		if v, ok := found[p]; ok {
			fmt.Fprintf(out, "%s API Key: Found (source=%s)\n", p, v)
			continue
		}
		fmt.Fprintf(out, "%s API Key: Not Found (set one of %s)\n", p, strings.Join(credentials.EnvVars(p), ", "))
	}
}
