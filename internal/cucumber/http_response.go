package cucumber

// Steps that assert on the raw response of the last `I GET path ...` or
// `I POST path ...` step. Selections are jq expressions, e.g.:
//
//	When I GET path "/api/contractor-invitations/token/tok-a"
//	Then the response code should be 200
//	And the ".data.status" selection from the response should match "pending"
//	And I store the ".data.token" selection from the response as ${token}
//	When I POST path "/api/contractor-invitations/token/${token}/accept" with json body:
//	  """
//	  {}
//	  """
//	Then the response should contain json:
//	  """
//	  {"message": "Invitation accepted."}
//	  """

import (
	"encoding/json"
	"fmt"

	"github.com/cucumber/godog"
	"github.com/itchyny/gojq"
)

func init() {
	StepModules = append(StepModules, func(ctx *godog.ScenarioContext, s *TestScenario) {
		ctx.Step(`^the response code should be (\d+)$`, s.theResponseCodeShouldBe)
		ctx.Step(`^the response should match json:$`, s.theResponseShouldMatchJson)
		ctx.Step(`^the response should contain json:$`, s.theResponseShouldContainJson)
		ctx.Step(`^the response header "([^"]*)" should match "([^"]*)"$`, s.theResponseHeaderShouldMatch)
		ctx.Step(`^I store the "([^"]*)" selection from the response as \${([^"]*)}$`, s.iStoreTheSelectionFromTheResponseAs)
		ctx.Step(`^the "(.*)" selection from the response should match "([^"]*)"$`, s.theSelectionFromTheResponseShouldMatch)
		ctx.Step(`^the "([^"]*)" selection from the response should match json:$`, s.theSelectionFromTheResponseShouldMatchJson)
	})
}

// response returns the last response, failing when no request was sent.
func (s *TestScenario) response() (*TestSession, error) {
	session := s.Session()
	if session.Resp == nil {
		return nil, fmt.Errorf("no request has been sent yet")
	}
	return session, nil
}

// selectFromResponse runs the jq selector against the response body and
// returns the first result.
func (s *TestScenario) selectFromResponse(selector string) (any, error) {
	session, err := s.response()
	if err != nil {
		return nil, err
	}
	doc, err := session.RespJson()
	if err != nil {
		return nil, err
	}
	query, err := gojq.Parse(selector)
	if err != nil {
		return nil, err
	}
	next, found := query.Run(doc).Next()
	if !found {
		return nil, fmt.Errorf("response json has no node that matches selector: %s", selector)
	}
	if err, ok := next.(error); ok {
		return nil, fmt.Errorf("selector %s failed: %w", selector, err)
	}
	return next, nil
}

func (s *TestScenario) theResponseCodeShouldBe(expected int) error {
	session, err := s.response()
	if err != nil {
		return err
	}
	if actual := session.Resp.StatusCode; expected != actual {
		return fmt.Errorf("expected response code to be: %d, but actual is: %d, body: %s", expected, actual, string(session.RespBytes))
	}
	return nil
}

func (s *TestScenario) responseBody() (string, error) {
	session, err := s.response()
	if err != nil {
		return "", err
	}
	if len(session.RespBytes) == 0 {
		return "", fmt.Errorf("got an empty response from server, expected a json body")
	}
	return string(session.RespBytes), nil
}

func (s *TestScenario) theResponseShouldMatchJson(expected *godog.DocString) error {
	body, err := s.responseBody()
	if err != nil {
		return err
	}
	return s.JsonMustMatch(body, expected.Content, true)
}

func (s *TestScenario) theResponseShouldContainJson(expected *godog.DocString) error {
	body, err := s.responseBody()
	if err != nil {
		return err
	}
	return s.JsonMustContain(body, expected.Content, true)
}

func (s *TestScenario) theResponseHeaderShouldMatch(header, expected string) error {
	session, err := s.response()
	if err != nil {
		return err
	}
	expanded, err := s.Expand(expected)
	if err != nil {
		return err
	}
	if actual := session.Resp.Header.Get(header); expanded != actual {
		return fmt.Errorf("response header '%s' does not match expected: %v, actual: %v", header, expanded, actual)
	}
	return nil
}

func (s *TestScenario) iStoreTheSelectionFromTheResponseAs(selector string, as string) error {
	next, err := s.selectFromResponse(selector)
	if err != nil {
		return err
	}
	switch next.(type) {
	case map[string]interface{}, []interface{}:
		bytes, err := json.Marshal(next)
		if err != nil {
			return err
		}
		s.Variables[as] = string(bytes)
	default:
		s.Variables[as] = fmt.Sprintf("%v", next)
	}
	return nil
}

func (s *TestScenario) theSelectionFromTheResponseShouldMatch(selector string, expected string) error {
	actual, err := s.selectFromResponse(selector)
	if err != nil {
		return err
	}
	expected, err = s.Expand(expected)
	if err != nil {
		return err
	}
	text := "null" // use null to represent missing value
	if actual != nil {
		text = fmt.Sprintf("%v", actual)
	}
	if text != expected {
		return fmt.Errorf("selected JSON does not match. expected: %v, actual: %v", expected, text)
	}
	return nil
}

func (s *TestScenario) theSelectionFromTheResponseShouldMatchJson(selector string, expected *godog.DocString) error {
	actual, err := s.selectFromResponse(selector)
	if err != nil {
		return err
	}
	bytes, err := json.Marshal(actual)
	if err != nil {
		return err
	}
	return s.JsonMustMatch(string(bytes), expected.Content, true)
}
