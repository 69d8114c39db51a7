package main

import "github.com/blockylab/blocky/app/wallet/cli/cmd"

func main() {
	cmd.Execute()
}
