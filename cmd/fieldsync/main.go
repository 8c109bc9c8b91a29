package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/fieldsync/internal/client/cli"
)

func main() {
	if err := cli.Execute(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
