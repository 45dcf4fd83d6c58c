package main

import "github.com/pairline/pairline/internal/cli"

func main() {
	cli.Execute()
}
