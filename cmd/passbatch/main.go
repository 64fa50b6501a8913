// Command passbatch launches one batch job by name and exits with a
// non-zero status when the job finishes FAILED.
//
//	passbatch <jobName> [key=value ...]
//
// Example:
//
//	passbatch makeStatisticsJob from="2026-01-01 00:00" to="2026-02-01 00:00"
package main

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tigerroll/passbatch/internal/app"
	model "github.com/tigerroll/passbatch/pkg/batch/core/domain/model"
	"github.com/tigerroll/passbatch/pkg/batch/support/util/logger"
)

//go:embed resources/application.yaml
var embeddedConfig []byte

//go:embed resources/migrations
var embeddedMigrations embed.FS

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <jobName> [key=value ...]\n", os.Args[0])
		return 2
	}
	jobName := os.Args[1]
	params, err := parseParams(os.Args[2:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	migrations, err := fs.Sub(embeddedMigrations, "resources")
	if err != nil {
		logger.Errorf("failed to open embedded migrations: %v", err)
		return 1
	}

	jobExecution, err := app.Run(ctx, app.Options{
		JobName:        jobName,
		Params:         params,
		EnvFilePath:    os.Getenv("PASSBATCH_ENV_FILE"),
		EmbeddedConfig: embeddedConfig,
		Migrations:     migrations,
	})
	if err != nil {
		logger.Errorf("job '%s' did not complete: %v", jobName, err)
		return 1
	}
	if jobExecution.Status != model.BatchStatusCompleted {
		logger.Errorf("job '%s' finished with status %s", jobName, jobExecution.Status)
		return 1
	}
	return 0
}

func parseParams(args []string) (model.JobParameters, error) {
	params := model.NewJobParameters()
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok || key == "" {
			return params, fmt.Errorf("invalid parameter %q, expected key=value", arg)
		}
		params.Put(key, value)
	}
	return params, nil
}
