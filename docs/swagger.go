package docs

import "github.com/swaggo/swag"

// @title Junk Removal Tracking API
// @version 1.0
// @description Real-time order tracking and notification pipeline
// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name Authorization
var SwaggerInfo = &swag.Spec{
	Version:     "1.0",
	Host:        "localhost:8080",
	BasePath:    "/api/v1",
	Title:       "Junk Removal Tracking API",
	Description: "Real-time order tracking and notification pipeline",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
