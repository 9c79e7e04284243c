package main

import (
	"github.com/charlesreid1/how-do-i-snakemake/cmd"
)

func main() {
	cmd.Execute()
}
