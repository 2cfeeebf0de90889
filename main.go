package main

import "github.com/frahmantamala/refund-management/cmd"

func main() {
	cmd.Execute()
}
