package main

import "github.com/basel-ax/fitroom/internal/cli"

func main() {
	cli.Execute()
}
