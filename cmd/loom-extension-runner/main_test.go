package main

import (
	"encoding/json"
	"testing"
)

func TestExamplePingTool(t *testing.T) {
	content, isError := exampleTools["ping"](nil)
	if isError || content != "pong" {
		t.Fatalf("unexpected ping result: %q, %v", content, isError)
	}
}

func TestExampleEchoTool(t *testing.T) {
	args, _ := json.Marshal(map[string]string{"text": "hello"})
	content, isError := exampleTools["echo"](args)
	if isError || content != "hello" {
		t.Fatalf("unexpected echo result: %q, %v", content, isError)
	}
}

func TestExampleEchoToolInvalidArguments(t *testing.T) {
	_, isError := exampleTools["echo"](json.RawMessage(`not json`))
	if !isError {
		t.Fatal("expected error for invalid arguments")
	}
}

func TestExampleCommandStatus(t *testing.T) {
	output, action := exampleCommands["extension.status"](nil)
	if output != "ok" || action != "none" {
		t.Fatalf("unexpected command result: %q, %q", output, action)
	}
}

func TestFrameDecodesToolCallData(t *testing.T) {
	raw := []byte(`{
		"schema_version": 1,
		"hook": "tool-call",
		"payload": {
			"kind": "tool-call",
			"emitted_at_ms": 123,
			"data": {"tool": {"name": "ping", "arguments": {}}}
		}
	}`)
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if f.Payload.Kind != "tool-call" {
		t.Fatalf("unexpected kind: %q", f.Payload.Kind)
	}
	var data toolCallData
	if err := json.Unmarshal(f.Payload.Data, &data); err != nil {
		t.Fatalf("decode tool-call data: %v", err)
	}
	if data.Tool.Name != "ping" {
		t.Fatalf("unexpected tool name: %q", data.Tool.Name)
	}
}
