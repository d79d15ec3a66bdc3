// Package assembler implements the Template & Hand-off Assembler
// (spec §4.C). It generalizes the teacher's internal/templates
// (text/template-based Renderer, one file per stage) from rendering a
// single ProjectConfig's fields into rendering a Task's full
// prior-stage-output and hand-off-chain surface, and adds YAML
// front-matter (gopkg.in/yaml.v3) to each template declaring its
// placeholder set — a concrete, inspectable replacement for the
// teacher's implicit per-stage filename map
// (changes.stageFilenames).
package assembler

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/hoofy-labs/pipeline-engine/internal/task"
	"gopkg.in/yaml.v3"
)

//go:embed templates/*.tmpl
var embeddedTemplates embed.FS

// stageFilenames maps stages to their template filenames, the direct
// analog of the teacher's changes.stageFilenames.
var stageFilenames = map[task.Stage]string{
	task.StageBrainstorm:   "brainstorm.tmpl",
	task.StageDesignReview: "design_review.tmpl",
	task.StagePlan:         "plan.tmpl",
	task.StageImplement:    "implement.tmpl",
	task.StageCodeReview:   "code_review.tmpl",
	task.StageVerify:       "verify.tmpl",
}

const appendixFile = "handoff_appendix.tmpl"

type templateMeta struct {
	Placeholders []string `yaml:"placeholders"`
	Appendix     bool     `yaml:"appendix"`
}

type compiledTemplate struct {
	meta templateMeta
	tmpl *template.Template
}

// Renderer loads and renders stage templates.
type Renderer struct {
	stages   map[task.Stage]compiledTemplate
	appendix *template.Template
}

// NewRenderer parses every embedded stage template plus the common
// hand-off appendix. Returns an error if any template fails to parse
// or is missing its front-matter.
func NewRenderer() (*Renderer, error) {
	r := &Renderer{stages: make(map[task.Stage]compiledTemplate, len(stageFilenames))}

	for stage, filename := range stageFilenames {
		raw, err := embeddedTemplates.ReadFile("templates/" + filename)
		if err != nil {
			return nil, fmt.Errorf("reading template %s: %w", filename, err)
		}
		meta, body, err := splitFrontMatter(raw)
		if err != nil {
			return nil, fmt.Errorf("parsing front-matter for %s: %w", filename, err)
		}
		tmpl, err := template.New(filename).Parse(body)
		if err != nil {
			return nil, fmt.Errorf("parsing template %s: %w", filename, err)
		}
		r.stages[stage] = compiledTemplate{meta: meta, tmpl: tmpl}
	}

	appendixRaw, err := embeddedTemplates.ReadFile("templates/" + appendixFile)
	if err != nil {
		return nil, fmt.Errorf("reading hand-off appendix template: %w", err)
	}
	appendixTmpl, err := template.New(appendixFile).Parse(string(appendixRaw))
	if err != nil {
		return nil, fmt.Errorf("parsing hand-off appendix template: %w", err)
	}
	r.appendix = appendixTmpl

	return r, nil
}

// splitFrontMatter separates a leading `---\n...\n---\n` YAML block
// from the template body that follows it.
func splitFrontMatter(raw []byte) (templateMeta, string, error) {
	const delim = "---"
	s := string(raw)
	if !strings.HasPrefix(s, delim) {
		return templateMeta{}, s, nil
	}
	rest := s[len(delim):]
	idx := strings.Index(rest, "\n"+delim)
	if idx < 0 {
		return templateMeta{}, "", fmt.Errorf("unterminated front-matter block")
	}
	fm := rest[:idx]
	body := rest[idx+len("\n"+delim):]
	body = strings.TrimPrefix(body, "\n")

	var meta templateMeta
	if err := yaml.Unmarshal([]byte(fm), &meta); err != nil {
		return templateMeta{}, "", fmt.Errorf("invalid front-matter yaml: %w", err)
	}
	return meta, body, nil
}

// Render builds the full prompt for (stage, data): the stage template
// substituted against data, followed by the hand-off appendix when
// the template's front-matter sets appendix: true (every embedded
// stage template does). A template without that flag is rendered
// without the appendix.
func (r *Renderer) Render(stage task.Stage, data PromptData) (string, error) {
	ct, ok := r.stages[stage]
	if !ok {
		return "", fmt.Errorf("no template registered for stage %q", stage)
	}

	var buf bytes.Buffer
	if err := ct.tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering template for stage %q: %w", stage, err)
	}

	if ct.meta.Appendix {
		var appendixBuf bytes.Buffer
		if err := r.appendix.Execute(&appendixBuf, data); err != nil {
			return "", fmt.Errorf("rendering hand-off appendix: %w", err)
		}
		buf.WriteString(appendixBuf.String())
	}

	return buf.String(), nil
}

// RenderForTask is a convenience wrapper building PromptData from a
// task and rendering its current stage's prompt.
func (r *Renderer) RenderForTask(t *task.Task, now time.Time) (string, error) {
	stage := t.CurrentStage()
	data := BuildPromptData(t, now)
	return r.Render(stage, data)
}
