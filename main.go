package main

import "github.com/vibast-solutions/ms-go-creator-billing/cmd"

func main() {
	cmd.Execute()
}
