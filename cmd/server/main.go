package main

import (
	"github.com/stillpoint/mentor-backend/internal/bootstrap"
)

func main() {
	bootstrap.Run()
}
