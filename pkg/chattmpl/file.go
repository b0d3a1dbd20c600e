package chattmpl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"text/template"

	"github.com/germanamz/llamagent/pkg/chats/role"
)

// FileTemplate renders prompts with a user supplied text/template. The
// completion is parsed with Format's grammar.
type FileTemplate struct {
	tmpl   *template.Template
	format Format
}

// TemplateData is the value a template file is executed with.
type TemplateData struct {
	Messages            []TemplateMessage
	Tools               []TemplateTool
	ToolChoice          string
	AddGenerationPrompt bool
}

// TemplateMessage is a flattened message.
type TemplateMessage struct {
	Role       string
	Content    string
	ToolCalls  []TemplateCall
	ToolCallID string
	Name       string
	IsError    bool
}

// TemplateCall is a tool call inside an assistant message.
type TemplateCall struct {
	ID        string
	Name      string
	Arguments string
}

// TemplateTool is a tool declaration. Declaration is the OpenAI-style JSON.
type TemplateTool struct {
	Name        string
	Description string
	Parameters  string
	Declaration string
}

var funcs = template.FuncMap{
	"json": func(v any) (string, error) {
		data, err := json.Marshal(v)
		return string(data), err
	},
}

// LoadFile parses the template file at path.
func LoadFile(path string, format Format) (*FileTemplate, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is operator supplied
	if err != nil {
		return nil, fmt.Errorf("chattmpl: read template: %w", err)
	}

	return ParseText(path, string(data), format)
}

// ParseText parses a template from source text.
func ParseText(name, text string, format Format) (*FileTemplate, error) {
	if format == "" {
		format = FormatHermes
	}
	if _, err := ForFormat(format); err != nil {
		return nil, err
	}

	tmpl, err := template.New(name).Funcs(funcs).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("chattmpl: parse template: %w", err)
	}

	return &FileTemplate{tmpl: tmpl, format: format}, nil
}

// Apply implements Template.
func (f *FileTemplate) Apply(in Inputs) (Params, error) {
	data := TemplateData{
		ToolChoice:          in.ToolChoice,
		AddGenerationPrompt: in.AddGenerationPrompt,
	}

	for _, m := range in.Messages {
		tm := TemplateMessage{Role: string(m.Role), Content: m.TextContent()}
		for _, tc := range m.ToolCalls() {
			tm.ToolCalls = append(tm.ToolCalls, TemplateCall{ID: tc.ID, Name: tc.Name, Arguments: tc.Arguments})
		}
		if m.Role == role.Tool {
			for _, tr := range m.ToolResults() {
				tm.Content += tr.Content
				tm.ToolCallID = tr.ToolCallID
				tm.Name = tr.Name
				tm.IsError = tr.IsError
			}
		}
		data.Messages = append(data.Messages, tm)
	}

	if toolsEnabled(in) {
		for _, t := range in.Tools {
			params := string(t.InputSchema)
			if params == "" {
				params = `{"type":"object","properties":{}}`
			}
			data.Tools = append(data.Tools, TemplateTool{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
				Declaration: declare(t),
			})
		}
	}

	var buf bytes.Buffer
	if err := f.tmpl.Execute(&buf, data); err != nil {
		return Params{}, fmt.Errorf("chattmpl: render: %w", err)
	}

	return Params{Prompt: buf.String(), Format: f.format}, nil
}
