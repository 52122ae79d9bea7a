package main

import "excalidash/cli"

func main() {
	cli.Execute()
}
