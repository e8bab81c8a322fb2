package main

import "career-agent/internal/cli"

func main() {
	cli.Execute()
}
