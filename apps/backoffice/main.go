package main

import "github.com/merchantlabs/backoffice/internal/cli"

func main() {
	cli.Execute()
}
