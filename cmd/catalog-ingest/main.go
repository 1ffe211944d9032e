package main

import (
	"os"

	"github.com/sandgraal/retro-games-sub003/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
