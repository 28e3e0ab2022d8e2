package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/khatabill/khatabill-backend/pkg/logger"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	if err := newRootCmd(logg).ExecuteContext(context.Background()); err != nil {
		logg.Error(context.Background(), "migrate command failed", err)
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}
