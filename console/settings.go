package console

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/DachengChen/nlsql/api"
	"github.com/DachengChen/nlsql/errs"
	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/sync/errgroup"
)

// modelConfigSchema is the minimum shape the backend needs to start.
const modelConfigSchema = `{
  "type": "object",
  "required": ["models"],
  "properties": {
    "default_model": {"type": "string"},
    "models": {
      "type": "object",
      "additionalProperties": {"type": "object"}
    }
  }
}`

var modelConfigLoader = gojsonschema.NewStringLoader(modelConfigSchema)

// SettingsState is a copy of the loaded backend configuration.
type SettingsState struct {
	Loaded        bool
	ModelConfig   string // indented JSON
	ChatTemplate  string
	InferTemplate string
}

// Template returns the loaded text of kind.
func (s SettingsState) Template(kind string) string {
	if kind == api.TemplateInfer {
		return s.InferTemplate
	}
	return s.ChatTemplate
}

// Settings edits the backend model config and prompt templates.
type Settings struct {
	backend SettingsBackend
	note    notifier

	mu    sync.Mutex
	state SettingsState
}

// NewSettings creates an unloaded settings editor.
func NewSettings(backend SettingsBackend, sink Notifier) *Settings {
	return &Settings{backend: backend, note: notifier{category: "settings", sink: sink}}
}

// Snapshot returns a copy of the state.
func (s *Settings) Snapshot() SettingsState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Load fetches the model config and both templates. Nothing is applied
// unless all three calls succeed.
func (s *Settings) Load(ctx context.Context) error {
	var (
		cfg         json.RawMessage
		chat, infer string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cfg, err = s.backend.GetModelConfig(gctx)
		return err
	})
	g.Go(func() (err error) {
		chat, err = s.backend.GetTemplate(gctx, api.TemplateChat)
		return err
	})
	g.Go(func() (err error) {
		infer, err = s.backend.GetTemplate(gctx, api.TemplateInfer)
		return err
	})
	if err := g.Wait(); err != nil {
		s.note.fail("loading settings failed", err)
		return err
	}

	s.mu.Lock()
	s.state = SettingsState{
		Loaded:        true,
		ModelConfig:   indentJSON(cfg),
		ChatTemplate:  chat,
		InferTemplate: infer,
	}
	s.mu.Unlock()
	return nil
}

func indentJSON(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}

// ValidateModelConfig checks that text is a JSON object with a models map.
func ValidateModelConfig(text string) (json.RawMessage, error) {
	const op = "settings.model"

	raw := []byte(strings.TrimSpace(text))
	if !json.Valid(raw) {
		return nil, errs.Validationf(op, "model config is not valid JSON")
	}
	result, err := gojsonschema.Validate(modelConfigLoader, gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, errs.Validationf(op, "model config could not be checked: %v", err)
	}
	if !result.Valid() {
		problems := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			problems[i] = desc.String()
		}
		return nil, errs.Validationf(op, "invalid model config: %s", strings.Join(problems, "; "))
	}
	return raw, nil
}

// SaveModelConfig validates text locally and posts it.
func (s *Settings) SaveModelConfig(ctx context.Context, text string) error {
	raw, err := ValidateModelConfig(text)
	if err != nil {
		s.note.fail("", err)
		return err
	}
	if err := s.backend.SaveModelConfig(ctx, raw); err != nil {
		s.note.fail("saving model config failed", err)
		return err
	}
	s.mu.Lock()
	s.state.ModelConfig = indentJSON(raw)
	s.mu.Unlock()
	s.note.success("model config saved")
	return nil
}

// SaveTemplate posts a prompt template of kind chat or infer.
func (s *Settings) SaveTemplate(ctx context.Context, kind, text string) error {
	const op = "settings.template"

	if kind != api.TemplateChat && kind != api.TemplateInfer {
		err := errs.Validationf(op, "unknown template %q", kind)
		s.note.fail("", err)
		return err
	}
	if strings.TrimSpace(text) == "" {
		err := errs.Validationf(op, "template must not be empty")
		s.note.fail("", err)
		return err
	}
	if err := s.backend.SaveTemplate(ctx, kind, text); err != nil {
		s.note.fail("saving template failed", err)
		return err
	}
	s.mu.Lock()
	if kind == api.TemplateChat {
		s.state.ChatTemplate = text
	} else {
		s.state.InferTemplate = text
	}
	s.mu.Unlock()
	s.note.success(kind + " template saved")
	return nil
}
