package main

import (
	"github.com/clovid/prisma-sub000/cmd/app"
)

func main() {
	app.Run()
}
