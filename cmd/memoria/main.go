// Package main is the entry point for the memoria service.
package main

import (
	_ "go.uber.org/automaxprocs/maxprocs"

	"github.com/kart-io/memoria/cmd/memoria/app"
)

func main() {
	app.NewApp().Run()
}
