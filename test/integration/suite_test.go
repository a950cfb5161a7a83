//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"
)

// testContext holds state shared across step definitions within a scenario.
type testContext struct {
	baseURL      string
	client       *http.Client
	api          *reportAPI
	token        string
	lastID       string
	response     *http.Response
	responseBody []byte
}

// newTestContext targets BASE_URL when set, otherwise an in-process service.
func newTestContext() *testContext {
	return &testContext{
		baseURL: os.Getenv("BASE_URL"),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// reset clears response state between scenarios.
func (tc *testContext) reset() {
	if tc.response != nil && tc.response.Body != nil {
		tc.response.Body.Close()
	}

	tc.response = nil
	tc.responseBody = nil
	tc.token = ""
	tc.lastID = ""
}

// InitializeScenario registers step definitions for each scenario.
func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := newTestContext()
	external := tc.baseURL != ""

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()

		if external {
			return ctx, nil
		}

		api, err := newReportAPI(ctx)
		if err != nil {
			return ctx, err
		}

		tc.api = api
		tc.baseURL = api.server.URL

		return ctx, nil
	})

	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		tc.reset()

		if tc.api != nil {
			tc.api.close()
			tc.api = nil
		}

		return ctx, nil
	})

	ctx.Step(`^the service is running$`, tc.theServiceIsRunning)
	ctx.Step(`^I sign in as "([^"]*)"$`, tc.iSignInAs)
	ctx.Step(`^I am signed in as the administrator$`, tc.iAmSignedInAsTheAdministrator)
	ctx.Step(`^I submit a report:$`, tc.iSubmitAReport)
	ctx.Step(`^I submit a report with a photo:$`, tc.iSubmitAReportWithAPhoto)
	ctx.Step(`^I request GET "([^"]*)"$`, tc.iRequestGET)
	ctx.Step(`^I request the last report$`, tc.iRequestTheLastReport)
	ctx.Step(`^I delete the last report$`, tc.iDeleteTheLastReport)
	ctx.Step(`^the response status should be (\d+)$`, tc.theResponseStatusShouldBe)
	ctx.Step(`^the response should contain "([^"]*)"$`, tc.theResponseShouldContain)
	ctx.Step(`^the report list should have (\d+) reports?$`, tc.theReportListShouldHave)
	ctx.Step(`^the bucket should hold (\d+) objects?$`, tc.theBucketShouldHold)
}

// theServiceIsRunning verifies the service is reachable.
func (tc *testContext) theServiceIsRunning() error {
	if err := tc.do(http.MethodGet, "/-/live", nil, ""); err != nil {
		return fmt.Errorf("service is not running at %s: %w", tc.baseURL, err)
	}

	return tc.theResponseStatusShouldBe(http.StatusOK)
}

func (tc *testContext) iSignInAs(email string) error {
	body, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return err
	}

	if err := tc.do(http.MethodPost, "/api/v1/auth/sign-in", bytes.NewReader(body), "application/json"); err != nil {
		return err
	}

	if tc.response.StatusCode != http.StatusOK {
		return nil
	}

	var resp struct {
		Token string `json:"token"`
	}

	if err := json.Unmarshal(tc.responseBody, &resp); err != nil {
		return fmt.Errorf("decoding sign-in response: %w", err)
	}

	tc.token = resp.Token

	return nil
}

func (tc *testContext) iAmSignedInAsTheAdministrator() error {
	email := os.Getenv("ADMIN_EMAIL")
	if email == "" {
		email = testAdminEmail
	}

	if err := tc.iSignInAs(email); err != nil {
		return err
	}

	return tc.theResponseStatusShouldBe(http.StatusOK)
}

func (tc *testContext) iSubmitAReport(table *godog.Table) error {
	return tc.submit(table, nil)
}

func (tc *testContext) iSubmitAReportWithAPhoto(table *godog.Table) error {
	return tc.submit(table, []byte("\xff\xd8\xff\xe0 integration photo"))
}

func (tc *testContext) submit(table *godog.Table, photo []byte) error {
	var body bytes.Buffer

	mw := multipart.NewWriter(&body)

	for _, row := range table.Rows {
		if len(row.Cells) != 2 {
			return fmt.Errorf("expected field | value rows, got %d cells", len(row.Cells))
		}

		if err := mw.WriteField(row.Cells[0].Value, row.Cells[1].Value); err != nil {
			return err
		}
	}

	if photo != nil {
		part, err := mw.CreateFormFile("image", "photo.jpg")
		if err != nil {
			return err
		}

		if _, err := part.Write(photo); err != nil {
			return err
		}
	}

	if err := mw.Close(); err != nil {
		return err
	}

	if err := tc.do(http.MethodPost, "/api/v1/reports", &body, mw.FormDataContentType()); err != nil {
		return err
	}

	if tc.response.StatusCode == http.StatusCreated {
		var resp struct {
			ID string `json:"id"`
		}

		if err := json.Unmarshal(tc.responseBody, &resp); err != nil {
			return fmt.Errorf("decoding create response: %w", err)
		}

		tc.lastID = resp.ID
	}

	return nil
}

// iRequestGET makes a GET request to the specified path.
func (tc *testContext) iRequestGET(path string) error {
	return tc.do(http.MethodGet, path, nil, "")
}

func (tc *testContext) iRequestTheLastReport() error {
	if tc.lastID == "" {
		return fmt.Errorf("no report has been created in this scenario")
	}

	return tc.do(http.MethodGet, "/api/v1/reports/"+tc.lastID, nil, "")
}

func (tc *testContext) iDeleteTheLastReport() error {
	if tc.lastID == "" {
		return fmt.Errorf("no report has been created in this scenario")
	}

	return tc.do(http.MethodDelete, "/api/v1/reports/"+tc.lastID, nil, "")
}

// theResponseStatusShouldBe asserts the response status code.
func (tc *testContext) theResponseStatusShouldBe(expectedCode int) error {
	if tc.response == nil {
		return fmt.Errorf("no response received")
	}

	if tc.response.StatusCode != expectedCode {
		return fmt.Errorf("expected status %d, got %d. Body: %s",
			expectedCode, tc.response.StatusCode, string(tc.responseBody))
	}

	return nil
}

// theResponseShouldContain asserts the response body contains the given text.
func (tc *testContext) theResponseShouldContain(text string) error {
	if tc.responseBody == nil {
		return fmt.Errorf("no response body")
	}

	if body := string(tc.responseBody); !strings.Contains(body, text) {
		return fmt.Errorf("response body does not contain %q.\nBody: %s", text, body)
	}

	return nil
}

func (tc *testContext) theReportListShouldHave(n int) error {
	if err := tc.do(http.MethodGet, "/api/v1/reports", nil, ""); err != nil {
		return err
	}

	var reports []map[string]any
	if err := json.Unmarshal(tc.responseBody, &reports); err != nil {
		return fmt.Errorf("decoding report list: %w", err)
	}

	if len(reports) != n {
		return fmt.Errorf("expected %d reports, got %d", n, len(reports))
	}

	return nil
}

func (tc *testContext) theBucketShouldHold(n int) error {
	if tc.api == nil {
		return godog.ErrPending
	}

	if got := tc.api.bucket.count(); got != n {
		return fmt.Errorf("expected %d objects in the bucket, got %d", n, got)
	}

	return nil
}

// do sends a request with the scenario's token, if any, and buffers the body.
func (tc *testContext) do(method, path string, body io.Reader, contentType string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, tc.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if tc.token != "" {
		req.Header.Set("Authorization", "Bearer "+tc.token)
	}

	if tc.response != nil {
		tc.response.Body.Close()
	}

	tc.response, err = tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	tc.responseBody, err = io.ReadAll(tc.response.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	return nil
}

// TestFeatures runs the GoDog BDD test suite.
func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../features"},
			TestingT: t,
			Tags:     os.Getenv("GODOG_TAGS"),
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
