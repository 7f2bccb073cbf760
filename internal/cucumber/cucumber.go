// Package cucumber runs Gherkin based BDD scenarios against the invitation
// controllers. Every scenario gets its own mock invitation API, a real
// client.Client talking to it, and a fresh set of controllers, so scenarios
// can run concurrently.
//
// Some steps allow you store variables or use those variables.  The variables
// are scoped to the Scenario.  Controller state is published as variables
// after every step that changes it:
//
//	${list}           invitations.ListState
//	${detail}         invitations.DetailState
//	${notifications}  []models.Invitation of the active notifications
//	${stats}          invitations.StatsState
//
// Using in a test
//
//	func TestFeatures(t *testing.T) {
//		o := cucumber.DefaultOptions()
//		o.TestingT = t
//		s := cucumber.NewTestSuite(t)
//		status := godog.TestSuite{
//			Name:                "invitations",
//			Options:             &o,
//			ScenarioInitializer: s.InitializeScenario,
//		}.Run()
//		if status != 0 {
//			t.Fail()
//		}
//	}
package cucumber

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	jsonpatch "github.com/evanphx/json-patch"
	"github.com/ghodss/yaml"
	"github.com/itchyny/gojq"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/sitegrid/sitegrid/internal/client"
	"github.com/sitegrid/sitegrid/internal/invitations"
	"github.com/sitegrid/sitegrid/internal/signalbus"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/cucumber/godog"
	"github.com/cucumber/godog/colors"
)

func NewTestSuite(t *testing.T) *TestSuite {
	return &TestSuite{
		Context:  context.Background(),
		TestingT: t,
	}
}

func DefaultOptions() godog.Options {
	opts := godog.Options{
		Output:      colors.Colored(os.Stdout),
		Format:      "progress",
		Paths:       []string{"features"},
		Randomize:   time.Now().UTC().UnixNano(), // randomize TestScenario execution order
		Concurrency: 4,
	}
	for _, arg := range os.Args[1:] {
		if arg == "-test.v=true" || arg == "-test.v" || arg == "-v" { // go test transforms -v option
			opts.Format = "pretty"
		}
	}
	return opts
}

// TestSuite holds the state global to all the test scenarios.
// It is accessed concurrently from all test scenarios.
type TestSuite struct {
	Context  context.Context
	Mu       sync.Mutex
	TestingT *testing.T
}

// TestScenario holds that state of single scenario.  It is not accessed
// concurrently.
type TestScenario struct {
	Suite     *TestSuite
	API       *MockAPI
	Client    *client.Client
	Bus       signalbus.SignalBus
	Logger    *zap.SugaredLogger
	Variables map[string]interface{}
	// Now is the scenario clock. Controllers patch with it and expiry steps measure from it.
	Now time.Time

	List          *invitations.ListController
	Detail        *invitations.DetailController
	Notifications *invitations.Notifications
	Stats         *invitations.StatsAggregator

	session  *TestSession
	pending  map[string]<-chan error
	outcomes map[string]error
	lastErr  error
}

func (s *TestScenario) Logf(format string, args ...any) {
	s.Suite.TestingT.Logf(format, args...)
}

func (s *TestScenario) Ctx() context.Context {
	return s.Suite.Context
}

type Encoding struct {
	Name      string
	Marshal   func(any) ([]byte, error)
	Unmarshal func([]byte, any) error
}

var JsonEncoding = Encoding{
	Name: "json",
	Marshal: func(a any) ([]byte, error) {
		return json.MarshalIndent(a, "", "  ")
	},
	Unmarshal: json.Unmarshal,
}
var YamlEncoding = Encoding{
	Name:      "yaml",
	Marshal:   yaml.Marshal,
	Unmarshal: yaml.Unmarshal,
}

func (s *TestScenario) EncodingMustMatch(encoding Encoding, actual, expected string, expandExpected bool) error {

	var actualParsed interface{}
	err := encoding.Unmarshal([]byte(actual), &actualParsed)
	if err != nil {
		return fmt.Errorf("error parsing actual %s: %w\n%s was:\n%s", encoding.Name, err, encoding.Name, actual)
	}

	var expectedParsed interface{}
	expanded := expected
	if expandExpected {
		expanded, err = s.Expand(expected)
		if err != nil {
			return err
		}
	}

	// When you first set up a test step, you might not know what data you are expecting.
	if strings.TrimSpace(expanded) == "" {
		actual, _ := encoding.Marshal(actualParsed)
		return fmt.Errorf("expected %s not specified, actual %s was:\n%s", encoding.Name, encoding.Name, actual)
	}

	if err := encoding.Unmarshal([]byte(expanded), &expectedParsed); err != nil {
		return fmt.Errorf("error parsing expected %s: %w\n%s was:\n%s", encoding.Name, err, encoding.Name, expanded)
	}

	if !reflect.DeepEqual(expectedParsed, actualParsed) {
		expected, _ := encoding.Marshal(expectedParsed)
		actual, _ := encoding.Marshal(actualParsed)
		return fmt.Errorf("actual does not match expected, diff:\n%s", unifiedDiff(string(expected), string(actual)))
	}

	return nil
}

func (s *TestScenario) JsonMustMatch(actual, expected string, expandExpected bool) error {
	return s.EncodingMustMatch(JsonEncoding, actual, expected, expandExpected)
}

func (s *TestScenario) YamlMustMatch(actual, expected string, expandExpected bool) error {
	return s.EncodingMustMatch(YamlEncoding, actual, expected, expandExpected)
}

// JsonMustContain checks that every field of expected has the same value in
// actual. Fields missing from expected are not compared.
func (s *TestScenario) JsonMustContain(actual, expected string, expand bool) error {

	var actualParsed interface{}
	err := json.Unmarshal([]byte(actual), &actualParsed)
	if err != nil {
		return fmt.Errorf("error parsing actual json: %w\njson was:\n%s", err, actual)
	}

	if expand {
		expected, err = s.Expand(expected)
		if err != nil {
			return err
		}
	}

	// When you first set up a test step, you might not know what JSON you are expecting.
	if strings.TrimSpace(expected) == "" {
		actual, _ := JsonEncoding.Marshal(actualParsed)
		return fmt.Errorf("expected json not specified, actual json was:\n%s", actual)
	}

	actualIndented, err := JsonEncoding.Marshal(actualParsed)
	if err != nil {
		return err
	}

	merged, err := jsonpatch.MergeMergePatches(actualIndented, []byte(expected))
	if err != nil {
		return err
	}

	err = json.Unmarshal(merged, &actualParsed)
	if err != nil {
		return fmt.Errorf("error parsing merged json: %w\njson was:\n%s", err, actual)
	}
	mergedIndented, err := JsonEncoding.Marshal(actualParsed)
	if err != nil {
		return err
	}

	if string(actualIndented) != string(mergedIndented) {
		return fmt.Errorf("actual does not match expected, diff:\n%s", unifiedDiff(string(mergedIndented), string(actualIndented)))
	}

	return nil
}

func unifiedDiff(expected, actual string) string {
	diff, _ := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(expected),
		B:        difflib.SplitLines(actual),
		FromFile: "Expected",
		ToFile:   "Actual",
		Context:  1,
	})
	return diff
}

// Expand replaces ${var} or $var in the string based on saved Variables in the test scenario.
func (s *TestScenario) Expand(value string, skippedVars ...string) (result string, rerr error) {
	return os.Expand(value, func(name string) string {
		if contains(skippedVars, name) {
			return "$" + name
		}
		res, err := s.ResolveString(name)
		if err != nil {
			rerr = err
			return ""
		}
		return res
	}), rerr
}

func (s *TestScenario) ResolveString(name string) (string, error) {
	value, err := s.Resolve(name)
	if err != nil {
		return "", err
	}
	return ToString(value, name, JsonEncoding)
}

func ToString(value interface{}, name string, encoding Encoding) (string, error) {
	v := reflect.ValueOf(value)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return "", nil
		}
		v = v.Elem()
	}
	if v.IsValid() && v.Kind() != reflect.Interface {
		if _, isErr := value.(error); !isErr {
			value = v.Interface()
		}
	}
	switch value := value.(type) {
	case string:
		return value, nil
	case fmt.Stringer:
		return value.String(), nil
	case bool:
		if value {
			return "true", nil
		} else {
			return "false", nil
		}
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprintf("%d", value), nil
	case float32, float64:
		// handle int64 returned as float in json
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", value), "0"), "."), nil
	case nil:
		return "", nil
	case error:
		return "", fmt.Errorf("failed to evaluate selection: %s: %w", name, value)
	}

	bytes, err := encoding.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Resolve looks up a variable. "response" and "response.<jq path>" select
// from the last raw http response; "a.B.C" walks fields, map keys, slice
// indexes and no-arg methods of variable a.
func (s *TestScenario) Resolve(name string) (interface{}, error) {

	pipes := strings.Split(name, "|")
	for i := range pipes {
		pipes[i] = strings.TrimSpace(pipes[i])
	}
	name = pipes[0]
	pipes = pipes[1:]

	session := s.Session()
	if name == "response" {
		value, err := session.RespJson()
		return pipeline(pipes, value, err)
	} else if strings.HasPrefix(name, "response.") || strings.HasPrefix(name, "response[") {
		selector := "." + name
		query, err := gojq.Parse(selector)
		if err != nil {
			return pipeline(pipes, nil, err)
		}

		j, err := session.RespJson()
		if err != nil {
			return pipeline(pipes, nil, err)
		}

		j = map[string]interface{}{
			"response": j,
		}

		iter := query.Run(j)
		if next, found := iter.Next(); found {
			return pipeline(pipes, next, nil)
		} else {
			return pipeline(pipes, nil, fmt.Errorf("field ${%s} not found in json response:\n%s", name, string(session.RespBytes)))
		}
	}

	parts := strings.Split(name, ".")
	name = parts[0]

	value, found := s.Variables[name]
	if !found {
		return pipeline(pipes, nil, fmt.Errorf("variable ${%s} not defined yet", name))
	}

	var err error
	for _, part := range parts[1:] {
		value, err = s.SelectChild(value, part)
		if err != nil {
			return pipeline(pipes, nil, err)
		}
	}
	return pipeline(pipes, value, nil)
}

func (s *TestScenario) SelectChild(value any, path string) (any, error) {
	v := reflect.ValueOf(value)

	// dereference pointers
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, fmt.Errorf("cannot select %s from a nil %s", path, v.Type())
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map:
		key := reflect.ValueOf(path)
		if v.Type().Key() != key.Type() {
			return nil, fmt.Errorf("cannot select map key %s from %s", path, v.Type())
		}
		v = v.MapIndex(key)
		if !v.IsValid() {
			return nil, fmt.Errorf("map key %s not found", path)
		}
	case reflect.Slice:
		if path == "length" {
			return v.Len(), nil
		}
		index, err := strconv.Atoi(path)
		if err != nil {
			return nil, fmt.Errorf("cannot select slice index %s from %s", path, v.Type())
		}
		if index < 0 || index >= v.Len() {
			return nil, fmt.Errorf("slice index %s out of range", path)
		}
		v = v.Index(index)
	case reflect.Struct:
		if f := v.FieldByName(path); f.IsValid() {
			v = f
			break
		}
		m := v.MethodByName(path)
		if !m.IsValid() {
			return nil, fmt.Errorf("struct field %s not found", path)
		}
		if m.Type().NumIn() != 0 {
			return nil, fmt.Errorf("method %s takes arguments", path)
		}
		result := m.Call(nil)
		switch m.Type().NumOut() {
		case 1:
			return result[0].Interface(), nil
		case 2:
			if err, ok := result[1].Interface().(error); ok && err != nil {
				return nil, err
			}
			return result[0].Interface(), nil
		case 0:
			return nil, fmt.Errorf("method %s returns to few values", path)
		default:
			return nil, fmt.Errorf("method %s returns to many values", path)
		}
	default:
		return nil, fmt.Errorf("can't navigate to '%s' on type of %s", path, v.Type())
	}
	return v.Interface(), nil
}

func pipeline(pipes []string, value any, err error) (any, error) {
	for _, pipe := range pipes {
		fn := PipeFunctions[pipe]
		if fn == nil {
			return nil, fmt.Errorf("unknown pipe: %s", pipe)
		}
		value, err = fn(value, err)
	}
	return value, err
}

var PipeFunctions = map[string]func(any, error) (any, error){
	"json": func(value any, err error) (any, error) {
		if err != nil {
			return value, err
		}
		buf := bytes.NewBuffer(nil)
		encoder := json.NewEncoder(buf)
		encoder.SetIndent("", "  ")
		err = encoder.Encode(value)
		if err != nil {
			return value, err
		}
		return buf.String(), err
	},
	"string": func(value any, err error) (any, error) {
		if err != nil {
			return value, err
		}
		return fmt.Sprintf("%v", value), nil
	},
	"message": func(value any, err error) (any, error) {
		if err != nil {
			return value, err
		}
		switch e := value.(type) {
		case nil:
			return "", nil
		case error:
			var gatewayErr *client.Error
			if errors.As(e, &gatewayErr) {
				return client.Message(e), nil
			}
			return e.Error(), nil
		}
		return value, fmt.Errorf("%T is not an error", value)
	},
}

func contains(s []string, e string) bool {
	for _, a := range s {
		if a == e {
			return true
		}
	}
	return false
}

// StepModules is the list of functions used to add steps to a godog.ScenarioContext, you can
// add more to this list if you need test TestSuite specific steps.
var StepModules []func(ctx *godog.ScenarioContext, s *TestScenario)

func (suite *TestSuite) InitializeScenario(ctx *godog.ScenarioContext) {
	s := &TestScenario{
		Suite:     suite,
		Variables: map[string]interface{}{},
		pending:   map[string]<-chan error{},
		outcomes:  map[string]error{},
	}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		return ctx, s.start()
	})
	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		s.API.Close()
		return ctx, nil
	})

	for _, module := range StepModules {
		module(ctx, s)
	}
}

// start wires a fresh mock API, client and controllers for the scenario.
func (s *TestScenario) start() error {
	s.Now = time.Now().UTC().Truncate(time.Second)
	s.API = NewMockAPI(s.Now)
	s.Logger = zaptest.NewLogger(s.Suite.TestingT).Sugar()
	s.Bus = signalbus.NewSignalBus()

	c, err := client.NewClient(s.API.URL(),
		client.WithBearerToken(s.API.Token),
		client.WithTLSConfig(s.API.TLSConfig()),
		client.WithUserAgent("sitegrid-cucumber"),
		client.WithRetries(0, 0),
		client.WithTimeout(10*time.Second),
		client.WithLogger(s.Logger),
	)
	if err != nil {
		return err
	}
	s.Client = c

	opts := []invitations.Option{
		invitations.WithLogger(s.Logger),
		invitations.WithSignalBus(s.Bus),
		invitations.WithClock(func() time.Time { return s.Now }),
	}
	s.List = invitations.NewListController(c, opts...)
	s.Detail = invitations.NewDetailController(c, opts...)
	s.Notifications = invitations.NewNotifications(c, opts...)
	s.Stats = invitations.NewStatsAggregator(c, opts...)
	s.publish()
	return nil
}

// publish stores the current controller state in the scenario variables.
func (s *TestScenario) publish() {
	s.Variables["list"] = s.List.State()
	s.Variables["detail"] = s.Detail.State()
	s.Variables["notifications"] = s.Notifications.Active()
	s.Variables["stats"] = s.Stats.State()
	s.Variables["error"] = s.lastErr
}
