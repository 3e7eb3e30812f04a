package main

import "github.com/frahmantamala/equipment-approvals/cmd"

func main() {
	cmd.Execute()
}
