// Send an http request straight to the mock invitation API with the scenario's
// bearer token. Supports (GET|POST):
//
//	When I GET path "/api/contractor-invitations/token/${token}"
//
// Send an http request with a body:
//
//	When I POST path "/api/contractor-invitations/token/tok-a/decline" with json body:
//	  """
//	  {"reason":"fully booked"}
//	  """
//
// Send a request without credentials:
//
//	When I GET path "/api/contractor-invitations/stats" without a token
package cucumber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/cucumber/godog"
)

func init() {
	StepModules = append(StepModules, func(ctx *godog.ScenarioContext, s *TestScenario) {
		ctx.Step(`^I (GET|POST) path "([^"]*)"$`, s.sendHttpRequest)
		ctx.Step(`^I (GET|POST) path "([^"]*)" without a token$`, s.sendAnonymousHttpRequest)
		ctx.Step(`^I (GET|POST) path "([^"]*)" with json body:$`, s.SendHttpRequestWithJsonBody)
	})
}

// TestSession holds the last raw http exchange of a scenario, kinda like a browser.
type TestSession struct {
	Client    *http.Client
	Resp      *http.Response
	Ctx       context.Context
	RespBytes []byte
	respJson  interface{}
	Header    http.Header
	Debug     bool
}

func (s *TestScenario) Session() *TestSession {
	if s.session == nil {
		s.session = &TestSession{
			Client: &http.Client{
				Transport: &http.Transport{
					TLSClientConfig: s.API.TLSConfig(),
				},
			},
			Header: http.Header{},
		}
	}
	return s.session
}

// RespJson returns the last http response body as json
func (s *TestSession) RespJson() (interface{}, error) {
	if s.respJson == nil {
		if err := json.Unmarshal(s.RespBytes, &s.respJson); err != nil {
			return nil, fmt.Errorf("error parsing json response: %w\nbody: %s", err, string(s.RespBytes))
		}

		if s.Debug {
			fmt.Println("response json:")
			e := json.NewEncoder(os.Stdout)
			e.SetIndent("", "  ")
			_ = e.Encode(s.respJson)
			fmt.Println("")
		}
	}
	return s.respJson, nil
}

func (s *TestSession) SetRespBytes(bytes []byte) {
	s.RespBytes = bytes
	s.respJson = nil
}

func (s *TestScenario) sendHttpRequest(method, path string) error {
	return s.SendHttpRequestWithJsonBody(method, path, nil)
}

func (s *TestScenario) sendAnonymousHttpRequest(method, path string) error {
	return s.sendHttpRequestAs(method, path, nil, false)
}

func (s *TestScenario) SendHttpRequestWithJsonBody(method, path string, jsonTxt *godog.DocString) (err error) {
	return s.sendHttpRequestAs(method, path, jsonTxt, true)
}

func (s *TestScenario) sendHttpRequestAs(method, path string, jsonTxt *godog.DocString, authenticated bool) (err error) {
	session := s.Session()

	body := &bytes.Buffer{}
	if jsonTxt != nil {
		expanded, err := s.Expand(jsonTxt.Content)
		if err != nil {
			return err
		}
		body.WriteString(expanded)
	}
	expandedPath, err := s.Expand(path)
	if err != nil {
		return err
	}

	// Lets reset all the response session state...
	session.Resp = nil
	session.SetRespBytes(nil)

	ctx := session.Ctx
	if ctx == nil {
		ctx = s.Ctx()
	}

	req, err := http.NewRequestWithContext(ctx, method, s.API.URL()+expandedPath, body)
	if err != nil {
		return err
	}

	// We consume the session headers on every request.
	req.Header = session.Header
	session.Header = http.Header{}

	if authenticated && req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+s.API.Token)
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := session.Client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	session.Resp = resp
	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	session.SetRespBytes(respBytes)
	return nil
}
