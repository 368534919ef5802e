package main

import "fmt"

const (
	SERVER_NAME    = "DJVirtu"
	SERVER_VERSION = "1.0.0"
)

// Set at link stage via `-ldflags "-X main.GIT_COMMIT=$(git rev-parse --short HEAD)"`
var GIT_COMMIT string

// Server header string
var SERVER_SIGNATURE = fmt.Sprintf("%s (%s)", SERVER_NAME+"/"+SERVER_VERSION, func() string {
	if GIT_COMMIT != "" {
		return GIT_COMMIT
	}
	return "unknown"
}())

// User-Agent for outbound requests to the hosted backend and reference APIs.
var USER_AGENT = SERVER_NAME + "/" + SERVER_VERSION
