package main

import "github.com/bryanchriswhite/ScreenCycler/cmd/screencycler/commands"

func main() {
	commands.Execute()
}
