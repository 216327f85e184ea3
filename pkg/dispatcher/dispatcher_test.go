// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/jllopis/docket/pkg/audit"
	derrors "github.com/jllopis/docket/pkg/errors"
	"github.com/jllopis/docket/pkg/llm"
)

// scriptedModel replies with reply and remembers what it was sent.
type scriptedModel struct {
	mu    sync.Mutex
	reply string
	texts []string
	extra []llm.Options
}

func (m *scriptedModel) ChatHTTP(_ context.Context, text string, extra llm.Options) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.texts = append(m.texts, text)
	m.extra = append(m.extra, extra)
	return m.reply
}

func scriptedFactory(m *scriptedModel, instruction *string) ModelFactory {
	return func(_ context.Context, _ string, instr string) (Model, error) {
		if instruction != nil {
			*instruction = instr
		}
		return m, nil
	}
}

func exampleRoster() []Assignment {
	return []Assignment{
		{Person: "marco polo", Responsibilities: []string{"cooking carbonara", "discovering america"}},
		{Person: "jane doe", Responsibilities: []string{"watching netflix", "saying hi"}},
	}
}

func newReadyDispatcher(t *testing.T, m *scriptedModel, opts ...Option) *Dispatcher {
	t.Helper()
	all := append([]Option{WithRoster(exampleRoster()...), WithModelFactory(scriptedFactory(m, nil))}, opts...)
	d, err := New(all...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if err := d.InitializeModel(context.Background(), "llama2-uncensored"); err != nil {
		t.Fatalf("InitializeModel failed: %v", err)
	}
	return d
}

func TestNewSeedsRosterInOrder(t *testing.T) {
	d, err := New(WithRoster(exampleRoster()...))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if d.Len() != 2 || d.IsEmpty() {
		t.Errorf("expected 2 people, got %d", d.Len())
	}
	wantResp := []string{"cooking carbonara", "discovering america", "watching netflix", "saying hi"}
	if got := d.Responsibilities(); !reflect.DeepEqual(got, wantResp) {
		t.Errorf("expected %v, got %v", wantResp, got)
	}
	if got := d.People(); !reflect.DeepEqual(got, []string{"marco polo", "jane doe"}) {
		t.Errorf("unexpected people order %v", got)
	}
	if d.Ready() {
		t.Errorf("new dispatcher must not be ready")
	}
}

func TestNewEmpty(t *testing.T) {
	d, err := New()
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !d.IsEmpty() || len(d.Responsibilities()) != 0 {
		t.Errorf("expected empty roster")
	}
}

func TestNewRejectsDuplicateSeed(t *testing.T) {
	_, err := New(WithRoster(
		Assignment{Person: "a", Responsibilities: []string{"x"}},
		Assignment{Person: "b", Responsibilities: []string{"x"}},
	))
	if !derrors.HasCode(err, derrors.CodeDuplicateResponsibility) {
		t.Fatalf("expected DUPLICATE_RESPONSIBILITY, got %v", err)
	}
}

func TestRegisterPerson(t *testing.T) {
	tests := []struct {
		name             string
		person           string
		responsibilities []string
		wantCode         derrors.ErrorCode
	}{
		{name: "new person", person: "john smith", responsibilities: []string{"baking bread"}},
		{name: "new person without responsibilities", person: "idle ian"},
		{name: "duplicate person", person: "jane doe", responsibilities: []string{"knitting"}, wantCode: derrors.CodeDuplicatePerson},
		{name: "responsibility owned by someone else", person: "john smith", responsibilities: []string{"baking bread", "saying hi"}, wantCode: derrors.CodeDuplicateResponsibility},
		{name: "responsibility repeated in the call", person: "john smith", responsibilities: []string{"knitting", "knitting"}, wantCode: derrors.CodeDuplicateResponsibility},
		{name: "empty name", person: "", responsibilities: []string{"knitting"}, wantCode: derrors.CodeInvalidInput},
		{name: "empty responsibility", person: "john smith", responsibilities: []string{""}, wantCode: derrors.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(WithRoster(exampleRoster()...))
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			before := d.Assignments()

			err = d.RegisterPerson(tt.person, tt.responsibilities)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if d.Len() != len(before)+1 {
					t.Errorf("expected roster to grow")
				}
				return
			}
			if !derrors.HasCode(err, tt.wantCode) {
				t.Fatalf("expected %s, got %v", tt.wantCode, err)
			}
			if after := d.Assignments(); !reflect.DeepEqual(before, after) {
				t.Errorf("roster changed on failure: %v", after)
			}
		})
	}
}

func TestRegisterPersonCopiesInput(t *testing.T) {
	d, _ := New()
	resp := []string{"cooking"}
	if err := d.RegisterPerson("chef", resp); err != nil {
		t.Fatalf("RegisterPerson failed: %v", err)
	}
	resp[0] = "changed"
	if got := d.Responsibilities(); got[0] != "cooking" {
		t.Errorf("roster must not alias caller slices, got %v", got)
	}
}

func TestConcurrentRegistration(t *testing.T) {
	d, _ := New()

	const n = 20
	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results <- d.RegisterPerson(fmt.Sprintf("person-%d", i), []string{"the only job"})
		}(i)
	}
	wg.Wait()
	close(results)

	ok := 0
	for err := range results {
		if err == nil {
			ok++
			continue
		}
		if !derrors.HasCode(err, derrors.CodeDuplicateResponsibility) {
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || d.Len() != 1 {
		t.Errorf("expected exactly one registration, got %d (len %d)", ok, d.Len())
	}
}

func TestInitializeModelInstruction(t *testing.T) {
	var instruction string
	d, _ := New(WithRoster(exampleRoster()...), WithModelFactory(scriptedFactory(&scriptedModel{}, &instruction)))

	if err := d.InitializeModel(context.Background(), "llama2-uncensored"); err != nil {
		t.Fatalf("InitializeModel failed: %v", err)
	}

	want := "You must answer as a machine. Classify the task below in exactly one of the following categories: " +
		"cooking carbonara, discovering america, watching netflix, saying hi"
	if instruction != want {
		t.Errorf("unexpected instruction:\n got: %q\nwant: %q", instruction, want)
	}
	if d.SystemInstruction() != want {
		t.Errorf("expected instruction to be kept")
	}
	if !d.Ready() || d.ModelName() != "llama2-uncensored" {
		t.Errorf("expected ready dispatcher bound to llama2-uncensored")
	}
}

func TestInitializeModelFailure(t *testing.T) {
	cause := errors.New("connection refused")
	d, _ := New(WithModelFactory(func(context.Context, string, string) (Model, error) {
		return nil, cause
	}))

	err := d.InitializeModel(context.Background(), "llama2-uncensored")
	if !derrors.HasCode(err, derrors.CodeModelInitFailure) {
		t.Fatalf("expected MODEL_INIT_FAILURE, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected cause to be wrapped")
	}
	if d.Ready() {
		t.Errorf("failed initialization must leave the dispatcher uninitialized")
	}
}

func TestInitializeModelWithClient(t *testing.T) {
	backend := &llm.MockBackend{Models: []string{"mistral:7b"}}
	d, _ := New(WithRoster(exampleRoster()...), WithClientOptions(llm.WithBackend(backend)))

	err := d.InitializeModel(context.Background(), "llama2-uncensored")
	if !derrors.HasCode(err, derrors.CodeModelInitFailure) {
		t.Fatalf("expected MODEL_INIT_FAILURE, got %v", err)
	}
	if !derrors.HasCode(err, derrors.CodeModelNotAvailable) {
		t.Errorf("expected MODEL_NOT_AVAILABLE cause, got %v", err)
	}
}

func TestInstructionIsSnapshotted(t *testing.T) {
	m := &scriptedModel{reply: "The task is about baking bread"}
	d := newReadyDispatcher(t, m)
	before := d.SystemInstruction()

	if err := d.RegisterPerson("john smith", []string{"baking bread"}); err != nil {
		t.Fatalf("RegisterPerson failed: %v", err)
	}
	if d.SystemInstruction() != before {
		t.Errorf("registration after initialization must not change the instruction")
	}

	person, err := d.Dispatch(context.Background(), "bake a loaf")
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if person != "john smith" {
		t.Errorf("expected classification against the current roster, got %q", person)
	}
}

func TestDispatchNotInitialized(t *testing.T) {
	d, _ := New(WithRoster(exampleRoster()...))
	_, err := d.Dispatch(context.Background(), "boil pasta")
	if !derrors.HasCode(err, derrors.CodeNotInitialized) {
		t.Fatalf("expected NOT_INITIALIZED, got %v", err)
	}
}

func TestDispatch(t *testing.T) {
	tests := []struct {
		name     string
		reply    string
		want     string
		wantCode derrors.ErrorCode
	}{
		{name: "single match", reply: "The task is related to cooking carbonara.", want: "marco polo"},
		{name: "other person", reply: "saying hi", want: "jane doe"},
		{name: "two partial words", reply: "This task is related to cooking and discovering.", wantCode: derrors.CodeAmbiguousReply},
		{name: "two matches", reply: "cooking carbonara while watching netflix", wantCode: derrors.CodeAmbiguousReply},
		{name: "no match", reply: "I do not know", wantCode: derrors.CodeAmbiguousReply},
		{name: "fallback reply", reply: llm.FallbackReply, wantCode: derrors.CodeAmbiguousReply},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &scriptedModel{reply: tt.reply}
			d := newReadyDispatcher(t, m)

			person, err := d.Dispatch(context.Background(), "boil the pasta")
			if tt.wantCode != "" {
				if !derrors.HasCode(err, tt.wantCode) {
					t.Fatalf("expected %s, got %v", tt.wantCode, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if person != tt.want {
				t.Errorf("expected %q, got %q", tt.want, person)
			}
			if m.texts[0] != "Task: boil the pasta" {
				t.Errorf("unexpected prompt %q", m.texts[0])
			}
		})
	}
}

func TestDispatchRequestOptions(t *testing.T) {
	m := &scriptedModel{reply: "saying hi"}
	d := newReadyDispatcher(t, m, WithRequestOptions(llm.Options{"temperature": 0.0}))

	if _, err := d.Dispatch(context.Background(), "wave"); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if m.extra[0]["temperature"] != 0.0 {
		t.Errorf("expected request options to reach the model, got %v", m.extra[0])
	}
}

func TestDispatchDecisionAudit(t *testing.T) {
	store := audit.NewMemoryStore()
	m := &scriptedModel{reply: "The task is related to cooking carbonara."}
	d := newReadyDispatcher(t, m, WithAuditStore(store))

	dec, err := d.DispatchDecision(context.Background(), "boil the pasta")
	if err != nil {
		t.Fatalf("DispatchDecision failed: %v", err)
	}
	if dec.ID == "" || dec.At.IsZero() {
		t.Errorf("expected id and time on decision: %+v", dec)
	}
	if dec.Responsibility != "cooking carbonara" || dec.Person != "marco polo" || dec.Model != "llama2-uncensored" {
		t.Errorf("unexpected decision %+v", dec)
	}

	m.reply = "nothing useful"
	if _, err := d.DispatchDecision(context.Background(), "sing"); err == nil {
		t.Fatal("expected ambiguous reply")
	}

	entries, err := store.List(context.Background(), audit.Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 audit entries, got %d", len(entries))
	}
	if entries[0].ID != dec.ID || entries[0].Outcome != "OK" || entries[0].Person != "marco polo" {
		t.Errorf("unexpected success entry %+v", entries[0])
	}
	if entries[1].Outcome != string(derrors.CodeAmbiguousReply) || entries[1].Error == "" || entries[1].Person != "" {
		t.Errorf("unexpected failure entry %+v", entries[1])
	}
}

func TestClassify(t *testing.T) {
	d, _ := New(WithRoster(exampleRoster()...))

	got, err := d.Classify("definitely watching netflix tonight")
	if err != nil || got != "watching netflix" {
		t.Fatalf("expected watching netflix, got %q, %v", got, err)
	}

	_, err = d.Classify("")
	if !derrors.HasCode(err, derrors.CodeAmbiguousReply) {
		t.Fatalf("expected AMBIGUOUS_REPLY, got %v", err)
	}
}

func TestOwner(t *testing.T) {
	d, _ := New(WithRoster(exampleRoster()...))

	if p, err := d.Owner("discovering america"); err != nil || p != "marco polo" {
		t.Errorf("expected marco polo, got %q, %v", p, err)
	}
	if _, err := d.Owner("flying"); !derrors.HasCode(err, derrors.CodeUnresolvable) {
		t.Errorf("expected UNRESOLVABLE, got %v", err)
	}
}
