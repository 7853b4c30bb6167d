package main

import "framesearch/internal/cli"

func main() {
	cli.Execute()
}
