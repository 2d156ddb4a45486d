package main

import (
	"testing"

	"github.com/wardlight/wardlight/internal/platform/modelgateway"
)

func TestModelClients_UnconfiguredStayNilInterfaces(t *testing.T) {
	reg := modelgateway.NewRegistry(modelgateway.Config{})

	llm, vision, asr, retriever := modelClients(reg)

	// Each interface must be a true nil, not a typed nil wrapping a nil
	// pointer, or the orchestrator's availability checks would pass and
	// every stage would panic at call time.
	if llm != nil {
		t.Errorf("llm = %#v, want nil interface", llm)
	}
	if vision != nil {
		t.Errorf("vision = %#v, want nil interface", vision)
	}
	if asr != nil {
		t.Errorf("asr = %#v, want nil interface", asr)
	}
	if retriever != nil {
		t.Errorf("retriever = %#v, want nil interface", retriever)
	}
}

func TestModelClients_ConfiguredEndpointsWired(t *testing.T) {
	reg := modelgateway.NewRegistry(modelgateway.Config{
		LLMURL:       "http://localhost:9001",
		RetrieverURL: "http://localhost:9004",
	})

	llm, vision, asr, retriever := modelClients(reg)

	if llm == nil {
		t.Error("llm = nil, want configured client")
	}
	if retriever == nil {
		t.Error("retriever = nil, want configured client")
	}
	if vision != nil {
		t.Errorf("vision = %#v, want nil interface", vision)
	}
	if asr != nil {
		t.Errorf("asr = %#v, want nil interface", asr)
	}
}
