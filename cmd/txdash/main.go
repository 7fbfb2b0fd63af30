package main

import "tx-dashboard/internal/cli"

func main() {
	cli.Execute()
}
