package main

import (
	"testing"

	"github.com/matryer/is"

	"github.com/chriscow/lk-voice/pkg/plugin"
)

func TestCommandTree(t *testing.T) {
	is := is.New(t)

	for _, path := range [][]string{
		{"version"},
		{"api", "serve"},
		{"worker", "run"},
		{"worker", "join"},
		{"worker", "healthz"},
		{"token", "mint"},
		{"plugin", "list"},
		{"stt", "transcribe"},
	} {
		cmd, _, err := rootCmd.Find(path)
		is.NoErr(err)
		is.Equal(cmd.Name(), path[len(path)-1])
	}
}

func TestProvidersRegistered(t *testing.T) {
	is := is.New(t)

	names := map[string]bool{}
	for _, p := range plugin.List("") {
		names[p.Kind+"/"+p.Name] = true
	}
	for _, want := range []string{"llm/openai", "tts/openai", "stt/openai", "llm/gemini", "llm/fake", "tts/fake", "stt/fake"} {
		is.True(names[want]) // provider registered
	}
}
