package main

import "github.com/noah-isme/docflow-api/internal/cli"

func main() {
	cli.Execute()
}
