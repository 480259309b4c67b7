package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"todo-backend/internal/client"
	"todo-backend/internal/tui"
)

var version = "dev"

func main() {
	if err := mainInner(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func mainInner() error {
	apiURL := flag.String("api", os.Getenv("TODO_API_URL"), "todo API base URL")
	timeout := flag.Duration("timeout", 10*time.Second, "per-request timeout")
	flag.Parse()

	api := client.New(*apiURL,
		client.WithToken(os.Getenv("TODO_TOKEN")),
		client.WithAppVersion(version),
		client.WithSessionID(uuid.NewString()),
	)
	return tui.Run(api, tui.WithTimeout(*timeout))
}
