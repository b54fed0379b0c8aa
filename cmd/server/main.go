package main

import (
	"github.com/openhub-dev/openhub/internal/bootstrap"
)

func main() {
	bootstrap.Run()
}
