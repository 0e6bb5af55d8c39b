package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mkobayashi/examforge/internal/pipeline"
)

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "List pipeline stages in execution order",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry := pipeline.NewRegistry()
		if err := pipeline.RegisterAll(registry); err != nil {
			return err
		}
		ordered, err := registry.GetOrdered()
		if err != nil {
			return err
		}

		for i, s := range ordered {
			fmt.Printf("%2d. %s\n", i+1, s.Name())
			fmt.Printf("    %s\n", s.Description())
			if deps := s.Dependencies(); len(deps) > 0 {
				fmt.Printf("    after: %s\n", strings.Join(deps, ", "))
			}
		}
		return nil
	},
}
