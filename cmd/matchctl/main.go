package main

import "github.com/oggyb/matchbot/internal/cli"

func main() {
	cli.Execute()
}
