// Copyright 2026 © The Docket Authors
// SPDX-License-Identifier: Apache-2.0

package llm

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakeOllama is a minimal Ollama server: "/" answers rootStatus, /api/tags
// lists models and /api/chat answers chatStatus with chatBody.
type fakeOllama struct {
	mu         sync.Mutex
	models     []string
	rootStatus int
	chatStatus int
	chatBody   string
	bodies     []map[string]any
}

func newFakeOllama(t *testing.T, f *fakeOllama) *httptest.Server {
	t.Helper()
	if f.rootStatus == 0 {
		f.rootStatus = http.StatusOK
	}
	if f.chatStatus == 0 {
		f.chatStatus = http.StatusOK
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(f.rootStatus)
		fmt.Fprint(w, "Ollama is running")
	})
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		type model struct {
			Name  string `json:"name"`
			Model string `json:"model"`
		}
		var out struct {
			Models []model `json:"models"`
		}
		for _, m := range f.models {
			out.Models = append(out.Models, model{Name: m, Model: m})
		}
		_ = json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("/api/chat", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("fake ollama: decode request: %v", err)
		}
		f.mu.Lock()
		f.bodies = append(f.bodies, body)
		f.mu.Unlock()
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(f.chatStatus)
		fmt.Fprint(w, f.chatBody)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (f *fakeOllama) requests() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.bodies...)
}
