package main

import "github.com/Alijeyrad/medvault_backend/cmd"

func main() {
	cmd.Execute()
}
