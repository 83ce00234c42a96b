package main

import "quickroot/cli"

func main() {
	cli.Execute()
}
