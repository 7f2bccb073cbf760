package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/ghodss/yaml"
	"github.com/itchyny/gojq"
	"github.com/olekukonko/tablewriter"
	"github.com/sitegrid/sitegrid/internal/config"
	"github.com/sitegrid/sitegrid/internal/models"
)

const LocalTimeFormat = "2006-01-02 15:04:05 MST"

var stdout io.Writer = os.Stdout

type TableField struct {
	Header    string
	Field     string
	Formatter func(item interface{}) string
}

// printer renders command results in the configured output format.
type printer struct {
	out    io.Writer
	format string
	query  string
}

func newPrinter(format, query string) *printer {
	return &printer{out: stdout, format: format, query: query}
}

func (p *printer) human() bool {
	return p.format == config.OutputColumn || p.format == config.OutputNoHeader
}

func (p *printer) show(fields []TableField, result any) error {
	switch p.format {
	case config.OutputJson, config.OutputJsonRaw, config.OutputYaml:
		values, err := p.filter(result)
		if err != nil {
			return err
		}
		for _, value := range values {
			if err := p.encode(value); err != nil {
				return err
			}
		}
		return nil
	case config.OutputColumn, config.OutputNoHeader:
		p.table(fields, result)
		return nil
	default:
		return fmt.Errorf("unknown --output option: %s", p.format)
	}
}

// filter applies the --query jq expression to the json form of result.
func (p *printer) filter(result any) ([]any, error) {
	if p.query == "" {
		return []any{result}, nil
	}
	query, err := gojq.Parse(p.query)
	if err != nil {
		return nil, fmt.Errorf("invalid --query: %w", err)
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, err
	}
	var values []any
	iter := query.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			return nil, fmt.Errorf("--query failed: %w", err)
		}
		values = append(values, v)
	}
	return values, nil
}

func (p *printer) encode(value any) error {
	var data []byte
	var err error
	switch p.format {
	case config.OutputJson:
		data, err = json.MarshalIndent(value, "", "  ")
	case config.OutputJsonRaw:
		data, err = json.Marshal(value)
	case config.OutputYaml:
		data, err = yaml.Marshal(value)
		if err == nil {
			_, err = p.out.Write(data)
		}
		if err != nil {
			return fmt.Errorf("failed to encode the ctl output: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to encode the ctl output: %w", err)
	}
	_, err = fmt.Fprintln(p.out, string(data))
	return err
}

func (p *printer) table(fields []TableField, result any) {
	table := tablewriter.NewWriter(p.out)
	table.SetBorders(tablewriter.Border{
		Left:   true,
		Right:  true,
		Top:    false,
		Bottom: false,
	})
	table.SetAutoWrapText(false)

	if p.format != config.OutputNoHeader {
		var headers []string
		for _, field := range fields {
			headers = append(headers, field.Header)
		}
		table.SetHeader(headers)
	}

	itemsValue := reflect.ValueOf(result)
	if !itemsValue.IsValid() || ((itemsValue.Kind() == reflect.Pointer || itemsValue.Kind() == reflect.Slice) && itemsValue.IsNil()) {
		table.Render()
		return
	}
	// if the itemsValue is not a slice, lets turn it into one.
	if itemsValue.Type().Kind() != reflect.Slice {
		itemsValue = reflect.MakeSlice(reflect.SliceOf(itemsValue.Type()), 0, 1)
		itemsValue = reflect.Append(itemsValue, reflect.ValueOf(result))
	}
	for i := 0; i < itemsValue.Len(); i++ {
		itemValue := itemsValue.Index(i)
		var line []string
		for _, field := range fields {
			if field.Formatter != nil {
				line = append(line, field.Formatter(itemValue.Interface()))
			} else if field.Field != "" {
				// Deref the items points.
				for itemValue.Type().Kind() == reflect.Pointer {
					itemValue = itemValue.Elem()
				}
				fieldValue := itemValue.FieldByName(field.Field)
				if !fieldValue.IsValid() {
					panic(fmt.Sprintf("field %s not found", field.Field))
				}
				line = append(line, fieldFormatter(fieldValue))
			} else {
				panic("TableField.Formatter or TableField.Field must be set")
			}
		}
		table.Append(line)
	}
	table.Render()
}

func fieldFormatter(itemValue reflect.Value) string {
	if !itemValue.IsValid() {
		return ""
	}
	switch v := itemValue.Interface().(type) {
	case time.Time:
		if v.IsZero() {
			return ""
		}
		return v.Local().Format(LocalTimeFormat)
	case fmt.Stringer:
		if itemValue.Kind() != reflect.Pointer || !itemValue.IsNil() {
			return v.String()
		}
	}
	switch itemValue.Type().Kind() {
	case reflect.Pointer:
		if itemValue.IsNil() {
			return ""
		}
		// deref and try again...
		return fieldFormatter(itemValue.Elem())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fmt.Sprintf("%d", itemValue.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fmt.Sprintf("%d", itemValue.Uint())
	case reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%f", itemValue.Float())
	case reflect.Bool:
		return fmt.Sprintf("%v", itemValue.Bool())
	case reflect.String:
		return itemValue.String()
	default:
		bytes, err := json.Marshal(itemValue.Interface())
		if err != nil {
			panic(err)
		}
		return string(bytes)
	}
}

// showSuccessfully prints a confirmation line in the human readable formats.
func (p *printer) showSuccessfully(format string, args ...any) {
	if p.human() {
		fmt.Fprintf(p.out, format+"\n", args...)
	}
}

// busy runs fn behind a spinner, but only for human readable output format,
// not when generating parseable output.
func (p *printer) busy(suffix string, fn func() error) error {
	var s *spinner.Spinner
	if p.format == config.OutputColumn && p.out == os.Stdout {
		s = spinner.New(spinner.CharSets[70], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
		s.Suffix = " " + suffix
		s.Start()
	}
	err := fn()
	if s != nil {
		s.Stop()
	}
	return err
}

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

func statusText(s models.Status) string {
	switch s {
	case models.StatusPending:
		return yellow(s.String())
	case models.StatusAccepted:
		return green(s.String())
	case models.StatusDeclined:
		return red(s.String())
	case models.StatusExpired:
		return faint(s.String())
	}
	return red("unknown")
}
