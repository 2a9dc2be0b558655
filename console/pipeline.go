package console

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/DachengChen/nlsql/api"
	"github.com/DachengChen/nlsql/errs"
	"github.com/DachengChen/nlsql/metrics"
	"golang.org/x/sync/errgroup"
)

// Stage is where a submission currently is.
type Stage int

const (
	StageIdle Stage = iota
	StageQuerying
	StageSummarizing
)

func (s Stage) String() string {
	switch s {
	case StageQuerying:
		return "querying"
	case StageSummarizing:
		return "summarizing"
	default:
		return "idle"
	}
}

type pipelineEvent string

const (
	eventSubmitted   pipelineEvent = "submitted"
	eventQueryOK     pipelineEvent = "query-ok"
	eventQueryFailed pipelineEvent = "query-failed"
	eventChatDone    pipelineEvent = "chat-done"
	eventAborted     pipelineEvent = "aborted"
)

var pipelineTransitions = map[Stage]map[pipelineEvent]Stage{
	StageIdle:        {eventSubmitted: StageQuerying},
	StageQuerying:    {eventQueryOK: StageSummarizing, eventQueryFailed: StageIdle, eventAborted: StageIdle},
	StageSummarizing: {eventChatDone: StageIdle},
}

// PipelineState is a copy of the pipeline's selection state.
type PipelineState struct {
	Stage  Stage
	Tables []string // every table the backend knows
	Models []string // sorted model names
	Model  string   // selected model
}

// LoadReport carries the independent outcome of each startup call.
type LoadReport struct {
	TablesErr error
	ModelsErr error
}

// Pipeline runs "question -> SQL -> summary" submissions and records
// them in a Conversation.
type Pipeline struct {
	backend QueryBackend
	note    notifier
	log     *Conversation

	mu     sync.Mutex
	stage  Stage
	tables []string
	models []string
	model  string
}

// NewPipeline creates an idle pipeline with an empty log.
func NewPipeline(backend QueryBackend, sink Notifier) *Pipeline {
	return &Pipeline{
		backend: backend,
		note:    notifier{category: "pipeline", sink: sink},
		log:     &Conversation{},
	}
}

// Log returns the conversation log.
func (p *Pipeline) Log() *Conversation { return p.log }

// Snapshot returns a copy of the selection state.
func (p *Pipeline) Snapshot() PipelineState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return PipelineState{
		Stage:  p.stage,
		Tables: append([]string(nil), p.tables...),
		Models: append([]string(nil), p.models...),
		Model:  p.model,
	}
}

// Load fetches the table list and the model list concurrently. Each
// failure is reported on its own and does not hide the other result.
func (p *Pipeline) Load(ctx context.Context) LoadReport {
	var (
		report LoadReport
		tables []string
		models *api.ModelList
		g      errgroup.Group
	)
	g.Go(func() error {
		tables, report.TablesErr = p.backend.ListTables(ctx)
		return nil
	})
	g.Go(func() error {
		models, report.ModelsErr = p.backend.ListModels(ctx)
		return nil
	})
	_ = g.Wait()

	p.mu.Lock()
	if report.TablesErr == nil {
		p.tables = tables
	}
	if report.ModelsErr == nil {
		p.models = models.Names()
		if p.model == "" || !contains(p.models, p.model) {
			p.model = models.Preferred()
		}
	}
	p.mu.Unlock()

	if report.TablesErr != nil {
		p.note.fail("loading tables failed", report.TablesErr)
	}
	if report.ModelsErr != nil {
		p.note.fail("loading models failed", report.ModelsErr)
	}
	return report
}

// SelectModel changes the model used by later submissions.
func (p *Pipeline) SelectModel(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !contains(p.models, name) {
		return errs.Validationf("pipeline.model", "unknown model %q", name)
	}
	p.model = name
	return nil
}

func (p *Pipeline) advance(ev pipelineEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if to, ok := pipelineTransitions[p.stage][ev]; ok {
		p.stage = to
	}
}

// Submit asks question against tables using model (the selected model
// when empty). It returns the first stage error, if any; every pending
// entry it appends is resolved before it returns.
func (p *Pipeline) Submit(ctx context.Context, question string, tables []string, model string) error {
	const op = "pipeline.submit"

	question = strings.TrimSpace(question)
	if question == "" {
		return p.reject(errs.Validationf(op, "enter a question"))
	}
	if len(tables) == 0 {
		return p.reject(errs.Validationf(op, "select at least one table"))
	}

	p.mu.Lock()
	if _, ok := pipelineTransitions[p.stage][eventSubmitted]; !ok {
		p.mu.Unlock()
		return p.reject(errs.Statef(op, "a question is still being answered"))
	}
	p.stage = StageQuerying
	if model == "" {
		model = p.model
	}
	p.mu.Unlock()

	p.log.appendUser(question)
	sqlID := p.log.appendPending(EntrySQLResult)

	res, err := p.backend.Query(ctx, api.QueryRequest{Query: question, TableNames: tables, ModelName: model})
	if err != nil {
		p.log.fail(sqlID, errs.Message(err))
		p.advance(eventQueryFailed)
		p.note.fail("query failed", err)
		metrics.PipelineRuns.WithLabelValues("query_failed").Inc()
		return err
	}
	if !p.log.succeed(sqlID, func(e *Entry) {
		e.SQL = res.SQL
		rs := res.ResultSet
		e.Result = &rs
	}) {
		p.advance(eventAborted)
		metrics.PipelineRuns.WithLabelValues("cleared").Inc()
		return nil
	}
	p.advance(eventQueryOK)
	p.note.success(fmt.Sprintf("query returned %d rows", len(res.Rows)))

	chatID := p.log.appendPending(EntryChatAnswer)
	answer, err := p.backend.Chat(ctx, api.ChatRequest{
		TableInfo: SummarizeResult(&res.ResultSet),
		Question:  question,
		ModelName: model,
	})
	p.advance(eventChatDone)
	if err != nil {
		p.log.fail(chatID, errs.Message(err))
		p.note.fail("analysis failed", err)
		metrics.PipelineRuns.WithLabelValues("chat_failed").Inc()
		return err
	}
	p.log.succeed(chatID, func(e *Entry) { e.Text = answer })
	metrics.PipelineRuns.WithLabelValues("completed").Inc()
	return nil
}

func (p *Pipeline) reject(err error) error {
	p.note.fail("", err)
	metrics.PipelineRuns.WithLabelValues("rejected").Inc()
	return err
}

// Clear empties the conversation log.
func (p *Pipeline) Clear() {
	p.log.Clear()
}
