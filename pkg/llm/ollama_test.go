// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"context"
	"strings"
	"testing"

	derrors "github.com/jllopis/docket/pkg/errors"
)

func TestOllamaPingAndList(t *testing.T) {
	srv := newFakeOllama(t, &fakeOllama{models: []string{"llama2-uncensored:latest", "mistral:7b"}})
	backend := NewOllama(srv.URL+"/", nil)

	if err := backend.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	models, err := backend.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels failed: %v", err)
	}
	if len(models) != 2 || models[0] != "llama2-uncensored:latest" || models[1] != "mistral:7b" {
		t.Errorf("unexpected models %v", models)
	}
}

func TestOllamaPingStatus(t *testing.T) {
	srv := newFakeOllama(t, &fakeOllama{rootStatus: 404})
	err := NewOllama(srv.URL, nil).Ping(context.Background())
	if !derrors.HasCode(err, derrors.CodeBackendUnreachable) {
		t.Fatalf("expected BACKEND_UNREACHABLE, got %v", err)
	}
}

func TestOllamaChat(t *testing.T) {
	fake := &fakeOllama{chatBody: `{"message":{"role":"assistant","content":"testing"},"done":true,"prompt_eval_count":7,"eval_count":2}`}
	srv := newFakeOllama(t, fake)

	resp, err := NewOllama(srv.URL, nil).Chat(context.Background(), ChatRequest{
		Model:    testModel,
		Messages: []Message{{Role: RoleUser, Content: "Task: write unit tests"}},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "testing" {
		t.Errorf("unexpected content %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 9 {
		t.Errorf("expected 9 total tokens, got %d", resp.Usage.TotalTokens)
	}
	if body := fake.requests()[0]; body["stream"] != false {
		t.Errorf("stateful chat must not stream, got %v", body["stream"])
	}
}

func TestOllamaChatStatusError(t *testing.T) {
	srv := newFakeOllama(t, &fakeOllama{chatStatus: 404, chatBody: `{"error":"model not found"}`})
	_, err := NewOllama(srv.URL, nil).Chat(context.Background(), ChatRequest{Model: "missing"})
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestOllamaChatStream(t *testing.T) {
	body := strings.Join([]string{
		`{"message":{"content":"The "}}`,
		`{"message":{"content":"task "}}`,
		`{"message":{"content":"is cooking"},"done":true,"eval_count":3}`,
	}, "\n") + "\n"
	fake := &fakeOllama{chatBody: body}
	srv := newFakeOllama(t, fake)

	chunks, err := NewOllama(srv.URL, nil).ChatStream(context.Background(), ChatRequest{Model: testModel})
	if err != nil {
		t.Fatalf("ChatStream failed: %v", err)
	}

	var sb strings.Builder
	var done bool
	for chunk := range chunks {
		if chunk.Error != nil {
			t.Fatalf("unexpected stream error: %v", chunk.Error)
		}
		sb.WriteString(chunk.Content)
		if chunk.Done {
			done = true
			if chunk.Usage == nil || chunk.Usage.CompletionTokens != 3 {
				t.Errorf("expected usage on final chunk, got %+v", chunk.Usage)
			}
		}
	}
	if !done {
		t.Errorf("expected a done chunk")
	}
	if sb.String() != "The task is cooking" {
		t.Errorf("unexpected streamed content %q", sb.String())
	}
	if req := fake.requests()[0]; req["stream"] != true {
		t.Errorf("expected stream true, got %v", req["stream"])
	}
}
