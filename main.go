package main

import "github.com/clusterguard/clusterguard/internal/cli"

func main() {
	cli.Execute()
}
