package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/quartermaster/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "List the callables plans can target",
	Long: `Catalog prints every callable the planner may route tasks to, with its
parameters and result fields. A catalog file at data.catalog_path overrides
the built-in set.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		cat, err := loadCatalog(cfg)
		if err != nil {
			return err
		}

		for _, call := range cat.List() {
			printCallable(call)
		}
		return nil
	},
}

func printCallable(call *catalog.Callable) {
	fmt.Printf("%s\n", color.CyanString(call.Name))
	fmt.Printf("  %s\n", call.Summary)

	var tags []string
	if call.ReferenceResolving {
		tags = append(tags, "resolves references")
	}
	if call.Mutating {
		tags = append(tags, "mutates state")
	}
	for _, tag := range tags {
		fmt.Printf("  %s\n", color.YellowString(tag))
	}

	for _, p := range call.Params {
		required := ""
		if p.Required {
			required = " (required)"
		}
		fmt.Printf("  param  %-12s %s%s  %s\n", p.Name, p.Type, required, p.Description)
	}
	for _, f := range call.Returns {
		fmt.Printf("  return %-12s %s  %s\n", f.Name, f.Type, f.Description)
	}
	fmt.Println()
}
