package logger

import "go.uber.org/zap"

// New builds the process logger. Development gets the console encoder and
// debug level, everything else the JSON production config.
func New(environment string) (*zap.Logger, error) {
	if environment == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
