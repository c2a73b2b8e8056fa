package main

import (
	"github.com/joho/godotenv"

	"github.com/breezy-desktop/xr-renderer/api/cmd/renderer"
)

func main() {
	_ = godotenv.Load()
	renderer.Execute()
}
