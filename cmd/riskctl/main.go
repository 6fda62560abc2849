package main

import "diabetes-risk/internal/cli"

func main() {
	cli.Execute()
}
