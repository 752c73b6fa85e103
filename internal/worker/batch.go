package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/almanac/internal/correct"
	"github.com/ppiankov/almanac/internal/model"
)

// Validator decides one candidate event
type Validator interface {
	Validate(ctx context.Context, ev *model.CandidateEvent, claimed model.MonthDay) model.Verdict
}

// EventJob validates one event of a batch
type EventJob struct {
	Index     int
	Event     model.CandidateEvent
	Validator Validator
}

// Execute validates a copy of the event. Invalid input is reported as an
// error and never reaches the validator.
func (j *EventJob) Execute(ctx context.Context) Result {
	ev := j.Event
	if err := ev.Prepare(); err != nil {
		return &EventResult{Index: j.Index, Event: ev, Error: err}
	}
	if err := ctx.Err(); err != nil {
		return &EventResult{Index: j.Index, Event: ev, Error: err}
	}
	v := j.Validator.Validate(ctx, &ev, ev.ClaimedDate)
	return &EventResult{Index: j.Index, Event: ev, Verdict: &v}
}

// EventResult is the outcome for one event. Event carries any year
// correction applied during validation.
type EventResult struct {
	Index   int                  `json:"-"`
	Event   model.CandidateEvent `json:"event"`
	Verdict *model.Verdict       `json:"verdict,omitempty"`
	Error   error                `json:"-"`
	Message string               `json:"error,omitempty"`
}

// GetError returns the input error, if any
func (r *EventResult) GetError() error {
	return r.Error
}

// Stats tallies a batch by outcome, method and reason
type Stats struct {
	Total     int            `json:"total"`
	Accepted  int            `json:"accepted"`
	Rejected  int            `json:"rejected"`
	Corrected int            `json:"corrected"`
	Invalid   int            `json:"invalid"`
	ByMethod  map[string]int `json:"by_method"`
	ByReason  map[string]int `json:"by_reason"`
}

func (s *Stats) add(r *EventResult) {
	s.Total++
	if r.Verdict == nil {
		s.Invalid++
		return
	}
	if r.Verdict.Accepted {
		s.Accepted++
	} else {
		s.Rejected++
	}
	if r.Verdict.Correction != nil {
		s.Corrected++
	}
	s.ByMethod[r.Verdict.Method]++
	s.ByReason[r.Verdict.Reason]++
}

// Report is the result of one batch run
type Report struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Results    []*EventResult `json:"results"`
	Stats      Stats          `json:"stats"`
}

// BatchProcessor validates many events on a worker pool
type BatchProcessor struct {
	validator   Validator
	concurrency int
	logger      *slog.Logger
}

// NewBatchProcessor creates a batch processor
func NewBatchProcessor(validator Validator, concurrency int, logger *slog.Logger) *BatchProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchProcessor{
		validator:   validator,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Process validates events and returns results in input order. One event's
// failure never stops the others.
func (b *BatchProcessor) Process(ctx context.Context, events []model.CandidateEvent) *Report {
	report := &Report{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Results:   make([]*EventResult, len(events)),
		Stats:     Stats{ByMethod: map[string]int{}, ByReason: map[string]int{}},
	}
	logger := b.logger.With("run_id", report.RunID)
	logger.Info("batch started", "events", len(events), "workers", b.concurrency)

	if len(events) > 0 {
		pool := NewPool(ctx, b.concurrency)
		pool.Start()
		for i, ev := range events {
			pool.Submit(&EventJob{Index: i, Event: ev, Validator: b.validator})
		}
		for _, r := range pool.Wait() {
			res := r.(*EventResult)
			report.Results[res.Index] = res
		}
	}

	for i, res := range report.Results {
		if res == nil {
			err := ctx.Err()
			if err == nil {
				err = fmt.Errorf("event not processed")
			}
			res = &EventResult{Index: i, Event: events[i], Error: err}
			report.Results[i] = res
		}
		if res.Error != nil {
			res.Message = res.Error.Error()
			logger.Warn("event skipped", "index", i, "title", res.Event.Title, "error", res.Error)
		}
		report.Stats.add(res)
	}

	report.FinishedAt = time.Now().UTC()
	logger.Info("batch finished", "accepted", report.Stats.Accepted, "rejected", report.Stats.Rejected,
		"corrected", report.Stats.Corrected, "invalid", report.Stats.Invalid,
		"elapsed", report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
	return report
}

// ProcessFile reads events from a file and validates them
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) (*Report, error) {
	events, err := ReadEventsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return b.Process(ctx, events), nil
}

// eventFile is the wrapped form of an events file
type eventFile struct {
	Events []model.CandidateEvent `json:"events" yaml:"events"`
}

// ReadEventsFromFile loads candidate events from a JSON (.json) or YAML file.
// The file holds either a list of events or an object with an "events" list.
// An event without claimed_date takes its day and year from date.
func ReadEventsFromFile(filePath string) ([]model.CandidateEvent, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var events []model.CandidateEvent
	if strings.EqualFold(filepath.Ext(filePath), ".json") {
		events, err = decodeJSON(data)
	} else {
		events, err = decodeYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filePath, err)
	}

	for i := range events {
		fillFromDate(&events[i])
	}
	return events, nil
}

func decodeJSON(data []byte) ([]model.CandidateEvent, error) {
	if data[0] == '[' {
		var events []model.CandidateEvent
		err := json.Unmarshal(data, &events)
		return events, err
	}
	var f eventFile
	err := json.Unmarshal(data, &f)
	return f.Events, err
}

func decodeYAML(data []byte) ([]model.CandidateEvent, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
		var events []model.CandidateEvent
		err := node.Decode(&events)
		return events, err
	}
	var f eventFile
	err := node.Decode(&f)
	return f.Events, err
}

func fillFromDate(ev *model.CandidateEvent) {
	if ev.ClaimedDate.Month != 0 || ev.Date == "" {
		return
	}
	t, ok := correct.ParseDate(ev.Date)
	if !ok {
		return
	}
	ev.ClaimedDate = model.MonthDay{Month: t.Month(), Day: t.Day()}
	if ev.Year == 0 {
		ev.Year = t.Year()
	}
}
