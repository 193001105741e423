// Package main is the entry point for memoriactl.
package main

import (
	"github.com/kart-io/memoria/internal/memoriactl"
)

func main() {
	memoriactl.Execute()
}
