package main

import "github.com/zaymazone/marketplace/internal/cmd"

func main() {
	cmd.Execute()
}
