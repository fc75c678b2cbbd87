package main

import (
	"github.com/civisdocs/corpusync/internal/cli"
)

func main() {
	cli.Execute()
}
