package main

import (
	"classroom-api/core/logger"
	"classroom-api/core/server"
	"os"
)

// @title Classroom API
// @version 1.0
// @description Recurring class scheduling backed by Google Calendar.

// @host localhost:7070
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Example: "Bearer {token}"

func main() {
	if err := server.Run(); err != nil {
		logger.Error("run server error", err)
		os.Exit(1)
	}
}
