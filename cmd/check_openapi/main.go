package main

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
	"messagecrud/pkg/domain"
)

type openAPIDoc struct {
	Paths      map[string]map[string]yaml.Node `yaml:"paths"`
	Components struct {
		Schemas map[string]schema `yaml:"schemas"`
	} `yaml:"components"`
}

type schema struct {
	Type       string            `yaml:"type"`
	Ref        string            `yaml:"$ref"`
	Properties map[string]schema `yaml:"properties"`
	Required   []string          `yaml:"required"`
	Items      *schema           `yaml:"items"`
}

type route struct {
	Path   string
	Method string
}

var expectedRoutes = []route{
	{"/message", "get"},
	{"/message", "post"},
	{"/message", "put"},
	{"/message/{userId}", "get"},
	{"/message/delete/{id}", "delete"},
	{"/message/delete/{userId}/{messageId}", "delete"},
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <openapi.yaml>\n", os.Args[0])
		os.Exit(2)
	}
	doc, err := loadDoc(os.Args[1])
	if err != nil {
		exitErr(err)
	}
	if err := check(doc); err != nil {
		exitErr(err)
	}
	fmt.Println("OpenAPI consistency check passed.")
}

func check(doc openAPIDoc) error {
	for _, r := range expectedRoutes {
		ops, ok := doc.Paths[r.Path]
		if !ok {
			return fmt.Errorf("path %q missing", r.Path)
		}
		if _, ok := ops[r.Method]; !ok {
			return fmt.Errorf("operation %s %s missing", strings.ToUpper(r.Method), r.Path)
		}
	}

	errResp, err := getSchema(doc, "ErrorResponse")
	if err != nil {
		return err
	}
	if err := validateErrorResponse(errResp); err != nil {
		return err
	}

	summary, err := getSchema(doc, "MessageSummary")
	if err != nil {
		return err
	}
	if err := ensureMatchesType("MessageSummary", summary, reflect.TypeOf(domain.MessageSummary{})); err != nil {
		return err
	}
	view, err := getSchema(doc, "MessageListView")
	if err != nil {
		return err
	}
	if err := ensureMatchesType("MessageListView", view, reflect.TypeOf(domain.MessageListView{})); err != nil {
		return err
	}
	messages := view.Properties["messages"]
	if messages.Items == nil || strings.TrimSpace(messages.Items.Ref) != "#/components/schemas/MessageSummary" {
		return errors.New("MessageListView.messages.items must reference MessageSummary")
	}
	return nil
}

func loadDoc(path string) (openAPIDoc, error) {
	var doc openAPIDoc
	raw, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func getSchema(doc openAPIDoc, name string) (schema, error) {
	if doc.Components.Schemas == nil {
		return schema{}, errors.New("components.schemas missing")
	}
	s, ok := doc.Components.Schemas[name]
	if !ok {
		return schema{}, fmt.Errorf("schema %q missing", name)
	}
	return s, nil
}

func validateErrorResponse(s schema) error {
	if s.Type != "object" {
		return errors.New("ErrorResponse must be object")
	}
	required := makeSet(s.Required)
	for _, field := range []string{"error", "code"} {
		if !required[field] {
			return fmt.Errorf("ErrorResponse.required must include %q", field)
		}
	}
	for _, field := range []string{"error", "code", "requestId"} {
		prop, ok := s.Properties[field]
		if !ok || prop.Type != "string" {
			return fmt.Errorf("ErrorResponse.%s must be string", field)
		}
	}
	return nil
}

// ensureMatchesType checks that the schema declares exactly the JSON fields of t, all required.
func ensureMatchesType(name string, s schema, t reflect.Type) error {
	if s.Type != "object" {
		return fmt.Errorf("%s must be object", name)
	}
	want := make(map[string]string, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if tag == "" || tag == "-" {
			continue
		}
		want[tag] = jsonType(f.Type)
	}
	if len(s.Properties) != len(want) {
		return fmt.Errorf("%s property count mismatch: %d vs %d", name, len(s.Properties), len(want))
	}
	for field, typ := range want {
		prop, ok := s.Properties[field]
		if !ok {
			return fmt.Errorf("%s missing property %q", name, field)
		}
		if prop.Type != typ {
			return fmt.Errorf("%s.%s type mismatch: %q vs %q", name, field, prop.Type, typ)
		}
	}
	required := append([]string(nil), s.Required...)
	sort.Strings(required)
	fields := make([]string, 0, len(want))
	for field := range want {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	if strings.Join(required, ",") != strings.Join(fields, ",") {
		return fmt.Errorf("%s required mismatch: %v vs %v", name, required, fields)
	}
	return nil
}

func jsonType(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int32, reflect.Int64:
		return "integer"
	case reflect.Bool:
		return "boolean"
	case reflect.Slice, reflect.Array:
		return "array"
	default:
		return "object"
	}
}

func makeSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out[item] = true
	}
	return out
}

func exitErr(err error) {
	fmt.Fprintln(os.Stderr, err.Error())
	os.Exit(1)
}
