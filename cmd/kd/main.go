package main

import (
	"os"

	"github.com/KurimiTokisakiQAQ/kd/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
