//go:build ignore
// +build ignore

package main

import (
	"log"

	cigmint "github.com/mithrel/cigmint/internal/cli"
	"github.com/spf13/cobra/doc"
)

func main() {
	root := cigmint.NewRootCmd()

	if err := doc.GenMarkdownTree(root, "./docs/markdown"); err != nil {
		log.Fatal(err)
	}

	header := &doc.GenManHeader{
		Title:   "CIGMINT-CLI",
		Section: "1",
	}
	if err := doc.GenManTree(root, header, "./docs/man"); err != nil {
		log.Fatal(err)
	}
}
