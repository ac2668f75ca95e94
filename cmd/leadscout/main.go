package main

import (
	"os"

	"horse.fit/leadscout/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
