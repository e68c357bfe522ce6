package e2e

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"

	"github.com/cucumber/godog"
	"github.com/cucumber/godog/colors"
)

// Scenarios drive a running server over HTTP and WebSocket, so they stay
// sequential: one TestContext carries state within a scenario and is
// reset between them.
var options = godog.Options{
	Output:      colors.Colored(os.Stdout),
	Format:      "pretty",
	Paths:       []string{"features"},
	Concurrency: 1,
	Strict:      true,
}

func init() {
	godog.BindCommandLineFlags("godog.", &options)
}

func TestFeatures(t *testing.T) {
	if os.Getenv("BASE_URL") == "" {
		t.Skip("BASE_URL not set; start a dev server and point the suite at it")
	}

	flag.Parse()
	options.TestingT = t

	status := godog.TestSuite{
		Name:                "emblem",
		ScenarioInitializer: InitializeScenario,
		Options:             &options,
	}.Run()
	if status != 0 {
		t.Fatalf("feature suite exited with status %d", status)
	}
}

func InitializeScenario(sc *godog.ScenarioContext) {
	tc := NewTestContext()

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		tc.Reset()
		return ctx, nil
	})
	sc.After(func(ctx context.Context, scenario *godog.Scenario, err error) (context.Context, error) {
		tc.CloseStream()
		if err != nil {
			fmt.Printf("scenario %q failed, last response: %s\n", scenario.Name, tc.LastResponseBody)
		}
		return ctx, nil
	})

	RegisterSteps(sc, tc)
}
