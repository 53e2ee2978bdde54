package main

import (
	"pulseboard/cmd/handlers"
	"pulseboard/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
