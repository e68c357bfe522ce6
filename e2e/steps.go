package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cucumber/godog"
)

const envelopeWait = 5 * time.Second

// RegisterSteps registers all step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Background steps
	ctx.Step(`^the badge service is running$`, tc.badgeServiceIsRunning)

	// Request steps
	ctx.Step(`^I GET "([^"]*)"$`, tc.getPath)
	ctx.Step(`^I POST to "([^"]*)" with empty body$`, tc.postWithEmptyBody)
	ctx.Step(`^I POST a "([^"]*)" callback for session "([^"]*)" with outcome "([^"]*)"$`, tc.postCallback)

	// Event stream steps
	ctx.Step(`^I open an event stream$`, tc.openEventStream)
	ctx.Step(`^opening an event stream with token "([^"]*)" should fail$`, tc.openStreamWithTokenShouldFail)
	ctx.Step(`^I subscribe to channel "([^"]*)"$`, tc.subscribeToChannel)
	ctx.Step(`^I send a stream ping$`, tc.sendStreamPing)
	ctx.Step(`^I send a "([^"]*)" control message$`, tc.sendControlMessage)
	ctx.Step(`^I should receive an envelope of type "([^"]*)"$`, tc.shouldReceiveEnvelopeOfType)

	// Assertion steps
	ctx.Step(`^the response status should be (\d+)$`, tc.responseStatusShouldBe)
	ctx.Step(`^the response should contain "([^"]*)"$`, tc.responseShouldContain)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, tc.responseFieldShouldEqual)
}

func (tc *TestContext) badgeServiceIsRunning(ctx context.Context) error {
	return nil
}

func (tc *TestContext) getPath(ctx context.Context, path string) error {
	return tc.GET(path)
}

func (tc *TestContext) postWithEmptyBody(ctx context.Context, path string) error {
	return tc.POST(path, map[string]interface{}{})
}

func (tc *TestContext) postCallback(ctx context.Context, provider, sessionID, outcome string) error {
	body := map[string]interface{}{
		"outcome": outcome,
		"did":     "did:e2e:" + sessionID,
	}
	return tc.POST("/callbacks/"+provider+"?session="+sessionID, body)
}

func (tc *TestContext) openEventStream(ctx context.Context) error {
	return tc.OpenStream("")
}

func (tc *TestContext) openStreamWithTokenShouldFail(ctx context.Context, token string) error {
	if err := tc.OpenStream(token); err == nil {
		tc.CloseStream()
		return fmt.Errorf("event stream accepted token %q", token)
	}
	return nil
}

func (tc *TestContext) subscribeToChannel(ctx context.Context, channel string) error {
	return tc.SendControl(map[string]interface{}{
		"type":     "subscribe",
		"channels": []string{channel},
	})
}

func (tc *TestContext) sendStreamPing(ctx context.Context) error {
	return tc.SendControl(map[string]interface{}{"type": "ping"})
}

func (tc *TestContext) sendControlMessage(ctx context.Context, msgType string) error {
	return tc.SendControl(map[string]interface{}{"type": msgType})
}

func (tc *TestContext) shouldReceiveEnvelopeOfType(ctx context.Context, wantType string) error {
	deadline := time.Now().Add(envelopeWait)
	for time.Now().Before(deadline) {
		envelope, err := tc.NextEnvelope(time.Until(deadline))
		if err != nil {
			return err
		}
		if envelope["type"] == wantType {
			return nil
		}
	}
	return fmt.Errorf("no envelope of type %q arrived; saw %d envelopes", wantType, len(tc.Envelopes))
}

func (tc *TestContext) responseStatusShouldBe(ctx context.Context, expectedStatus int) error {
	if tc.LastResponse == nil {
		return fmt.Errorf("no response recorded")
	}
	if tc.LastResponse.StatusCode != expectedStatus {
		return fmt.Errorf("expected status %d but got %d", expectedStatus, tc.LastResponse.StatusCode)
	}
	return nil
}

func (tc *TestContext) responseShouldContain(ctx context.Context, text string) error {
	if !tc.ResponseContains(text) {
		return fmt.Errorf("response does not contain: %s\nResponse: %s", text, string(tc.LastResponseBody))
	}
	return nil
}

func (tc *TestContext) responseFieldShouldEqual(ctx context.Context, field, expectedValue string) error {
	var data map[string]interface{}
	if err := json.Unmarshal(tc.LastResponseBody, &data); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}

	actualValue, ok := data[field]
	if !ok {
		return fmt.Errorf("field %s not found in response", field)
	}

	if fmt.Sprint(actualValue) != expectedValue {
		return fmt.Errorf("field %s: expected %s but got %v", field, expectedValue, actualValue)
	}
	return nil
}
