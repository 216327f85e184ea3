// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

// Package dispatcher routes proceedings to the person responsible for them.
//
// A Dispatcher owns a Roster. Once a model is bound with InitializeModel,
// Dispatch asks the model to name the responsibility a proceeding belongs
// to and resolves it to its owner. Replies naming zero or several known
// responsibilities are rejected rather than guessed.
package dispatcher

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/docket/pkg/audit"
	"github.com/jllopis/docket/pkg/errors"
	"github.com/jllopis/docket/pkg/llm"
	"github.com/jllopis/docket/pkg/telemetry"
)

// InstructionPrefix opens the system instruction given to the model.
const InstructionPrefix = "You must answer as a machine. Classify the task below in exactly one of the following categories: "

// TaskPrefix is prepended to every proceeding sent to the model.
const TaskPrefix = "Task: "

// Model is the part of the model client the dispatcher needs.
type Model interface {
	ChatHTTP(ctx context.Context, text string, extra llm.Options) string
}

// ModelFactory builds a Model for model primed with instruction.
type ModelFactory func(ctx context.Context, model, instruction string) (Model, error)

// ClientFactory returns a ModelFactory building *llm.Client values with opts.
func ClientFactory(opts ...llm.ClientOption) ModelFactory {
	return func(ctx context.Context, model, instruction string) (Model, error) {
		all := make([]llm.ClientOption, 0, len(opts)+1)
		all = append(all, opts...)
		all = append(all, llm.WithSystemInstruction(instruction))
		c, err := llm.NewClient(ctx, model, all...)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// Instruction builds the system instruction listing responsibilities.
func Instruction(responsibilities []string) string {
	return InstructionPrefix + strings.Join(responsibilities, ", ")
}

// Decision is the outcome of a successful dispatch.
type Decision struct {
	ID             string    `json:"id"`
	Proceeding     string    `json:"proceeding"`
	Reply          string    `json:"reply"`
	Responsibility string    `json:"responsibility"`
	Person         string    `json:"person"`
	Model          string    `json:"model"`
	At             time.Time `json:"at"`
}

// Dispatcher holds the roster and the bound model. It is safe for
// concurrent use: registrations are serialized and every dispatch builds
// its own request.
type Dispatcher struct {
	mu          sync.RWMutex
	roster      *Roster
	model       Model
	modelName   string
	instruction string

	seed    []Assignment
	factory ModelFactory
	extra   llm.Options
	store   audit.Store
	logger  *slog.Logger
	metrics *telemetry.Metrics
	tracer  trace.Tracer
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRoster seeds the roster. Seeds go through the same checks as
// RegisterPerson, so New fails on duplicates.
func WithRoster(assignments ...Assignment) Option {
	return func(d *Dispatcher) { d.seed = append(d.seed, assignments...) }
}

// WithModelFactory replaces how InitializeModel builds the model.
func WithModelFactory(f ModelFactory) Option {
	return func(d *Dispatcher) { d.factory = f }
}

// WithClientOptions configures the default *llm.Client factory.
func WithClientOptions(opts ...llm.ClientOption) Option {
	return func(d *Dispatcher) { d.factory = ClientFactory(opts...) }
}

// WithRequestOptions sets the extra options sent with every dispatch.
func WithRequestOptions(opts llm.Options) Option {
	return func(d *Dispatcher) { d.extra = opts }
}

// WithAuditStore records every dispatch attempt in store.
func WithAuditStore(store audit.Store) Option {
	return func(d *Dispatcher) { d.store = store }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithMetrics records dispatch outcomes.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// New creates an uninitialized Dispatcher.
func New(opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		roster:  NewRoster(),
		factory: ClientFactory(),
		tracer:  otel.Tracer("docket/dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = telemetry.ComponentLogger(d.logger, "dispatcher")

	for _, a := range d.seed {
		if err := d.roster.Add(a.Person, a.Responsibilities); err != nil {
			return nil, err
		}
	}
	d.seed = nil
	return d, nil
}

// RegisterPerson adds name with its responsibilities. It fails with
// CodeDuplicatePerson when name is known and with
// CodeDuplicateResponsibility when any responsibility is already owned or
// repeated; the roster is left unchanged on failure.
func (d *Dispatcher) RegisterPerson(name string, responsibilities []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.roster.Add(name, responsibilities); err != nil {
		return err
	}
	d.logger.Debug("person registered", "person", name, "responsibilities", len(responsibilities))
	return nil
}

// InitializeModel binds model, primed with the responsibilities known now.
// People registered later are not added to the instruction. A model that
// cannot be built fails with CodeModelInitFailure wrapping the cause.
func (d *Dispatcher) InitializeModel(ctx context.Context, model string) error {
	d.mu.RLock()
	responsibilities := d.roster.Responsibilities()
	people := d.roster.Len()
	d.mu.RUnlock()

	ctx, span := d.tracer.Start(ctx, "docket.initialize_model",
		trace.WithAttributes(telemetry.RosterAttributes(people, len(responsibilities))...))
	defer span.End()

	instruction := Instruction(responsibilities)
	m, err := d.factory(ctx, model, instruction)
	if err != nil {
		err = errors.New(errors.CodeModelInitFailure, "could not initialize model", err).
			WithContext("model", model)
		span.RecordError(err)
		span.SetStatus(codes.Error, "model init failed")
		d.metrics.RecordError(ctx, err, "dispatcher")
		return err
	}

	d.mu.Lock()
	d.model, d.modelName, d.instruction = m, model, instruction
	d.mu.Unlock()

	d.logger.InfoContext(ctx, "model initialized", "model", model, "responsibilities", len(responsibilities))
	return nil
}

// Dispatch returns the person responsible for proceeding.
func (d *Dispatcher) Dispatch(ctx context.Context, proceeding string) (string, error) {
	dec, err := d.DispatchDecision(ctx, proceeding)
	if err != nil {
		return "", err
	}
	return dec.Person, nil
}

// DispatchDecision is Dispatch returning the whole decision. It fails with
// CodeNotInitialized before InitializeModel, CodeAmbiguousReply when the
// reply does not name exactly one responsibility and CodeUnresolvable
// when nobody owns the named one.
func (d *Dispatcher) DispatchDecision(ctx context.Context, proceeding string) (Decision, error) {
	d.mu.RLock()
	model, modelName := d.model, d.modelName
	d.mu.RUnlock()

	if model == nil {
		return Decision{}, errors.New(errors.CodeNotInitialized, "model is not initialized", nil)
	}

	ctx, span := d.tracer.Start(ctx, "docket.dispatch")
	defer span.End()

	dec := Decision{
		ID:         uuid.NewString(),
		Proceeding: proceeding,
		Model:      modelName,
		At:         time.Now().UTC(),
	}
	dec.Reply = model.ChatHTTP(ctx, TaskPrefix+proceeding, d.extra)

	err := d.resolve(&dec)
	d.finish(ctx, span, dec, err)
	if err != nil {
		return Decision{}, err
	}
	return dec, nil
}

func (d *Dispatcher) resolve(dec *Decision) error {
	resp, err := d.Classify(dec.Reply)
	if err != nil {
		return err
	}
	dec.Responsibility = resp
	person, err := d.Owner(resp)
	if err != nil {
		return err
	}
	dec.Person = person
	return nil
}

func (d *Dispatcher) finish(ctx context.Context, span trace.Span, dec Decision, err error) {
	outcome := telemetry.OutcomeOK
	if err != nil {
		outcome = string(errors.CodeOf(err))
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
		d.logger.WarnContext(ctx, "dispatch failed", "id", dec.ID, "code", outcome, "reply", dec.Reply)
	} else {
		d.logger.InfoContext(ctx, "proceeding dispatched", "id", dec.ID, "person", dec.Person, "responsibility", dec.Responsibility)
	}
	span.SetAttributes(telemetry.DispatchAttributes(dec.ID, outcome, dec.Responsibility, dec.Person)...)
	d.metrics.RecordDispatch(ctx, dec.Model, err)

	if d.store == nil {
		return
	}
	entry := audit.Entry{
		ID:             dec.ID,
		Proceeding:     dec.Proceeding,
		Reply:          dec.Reply,
		Responsibility: dec.Responsibility,
		Person:         dec.Person,
		Model:          dec.Model,
		Outcome:        outcome,
		At:             dec.At,
	}
	if err != nil {
		entry.Person = ""
		entry.Error = err.Error()
	}
	if rerr := d.store.Record(ctx, entry); rerr != nil {
		d.logger.ErrorContext(ctx, "audit record failed", "id", dec.ID, "error", rerr)
	}
}

// Classify returns the one known responsibility that occurs in reply. A
// reply containing none or several of them fails with CodeAmbiguousReply.
func (d *Dispatcher) Classify(reply string) (string, error) {
	d.mu.RLock()
	responsibilities := d.roster.Responsibilities()
	d.mu.RUnlock()

	var matches []string
	for _, resp := range responsibilities {
		if strings.Contains(reply, resp) {
			matches = append(matches, resp)
		}
	}
	if len(matches) != 1 {
		return "", errors.Newf(errors.CodeAmbiguousReply,
			"could not identify exactly one responsibility in the reply: %s", reply).
			WithContext("matches", matches)
	}
	return matches[0], nil
}

// Owner returns the person owning responsibility, failing with
// CodeUnresolvable when nobody does.
func (d *Dispatcher) Owner(responsibility string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	person, ok := d.roster.Owner(responsibility)
	if !ok {
		return "", errors.Newf(errors.CodeUnresolvable, "no person found for responsibility: %s", responsibility)
	}
	return person, nil
}

// Len returns the number of registered people.
func (d *Dispatcher) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.roster.Len()
}

// IsEmpty reports whether nobody is registered.
func (d *Dispatcher) IsEmpty() bool { return d.Len() == 0 }

// Responsibilities returns every known responsibility in roster order.
func (d *Dispatcher) Responsibilities() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.roster.Responsibilities()
}

// People returns registered people in registration order.
func (d *Dispatcher) People() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.roster.People()
}

// Assignments returns a copy of the roster.
func (d *Dispatcher) Assignments() []Assignment {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.roster.Assignments()
}

// Ready reports whether a model is bound.
func (d *Dispatcher) Ready() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.model != nil
}

// ModelName returns the bound model identifier, or "" before initialization.
func (d *Dispatcher) ModelName() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.modelName
}

// SystemInstruction returns the instruction the bound model was given.
func (d *Dispatcher) SystemInstruction() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.instruction
}
