package main

import "github.com/ayusman/jdemotion/internal/cli"

func main() {
	cli.Execute()
}
