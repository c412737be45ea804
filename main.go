package main

import "go.infratographer.com/loadbalancer-controlplane/cmd"

func main() {
	cmd.Execute()
}
