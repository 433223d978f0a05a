package main

import (
	"flag"
	"fmt"
	"os"

	"headshot/internal/tools/sqllint"
)

func main() {
	flag.Parse()

	violations, err := sqllint.Lint(flag.Args()...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
		os.Exit(1)
	}
	if len(violations) > 0 {
		fmt.Fprintln(os.Stderr, "sqllint: missing SQL audit markers")
		for _, v := range violations {
			fmt.Fprintf(os.Stderr, "  %s\n", v)
		}
		os.Exit(1)
	}
}
