package main

import "github.com/inovacc/ghnotify/cmd"

func main() {
	cmd.Execute()
}
