package fake

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/chriscow/lk-voice/pkg/ai/llm"
	"github.com/chriscow/lk-voice/pkg/ai/stt"
	"github.com/chriscow/lk-voice/pkg/ai/tts"
	"github.com/chriscow/lk-voice/pkg/plugin"
)

func TestFakeProvidersBuildByName(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	m, err := plugin.NewLLM("fake", map[string]any{"responses": []string{"canned"}})
	is.NoErr(err)
	resp, err := m.Chat(ctx, llm.ChatRequest{Messages: []llm.Message{{Role: llm.RoleUser, Content: "hi"}}})
	is.NoErr(err)
	is.True(strings.HasPrefix(resp.Message.Content, "canned"))

	s, err := plugin.NewSTT("fake", map[string]any{"transcript": "hello there"})
	is.NoErr(err)
	tr, err := s.Transcribe(ctx, stt.TranscribeRequest{Audio: strings.NewReader("audio")})
	is.NoErr(err)
	is.Equal(tr.Text, "hello there")

	v, err := plugin.NewTTS("fake", nil)
	is.NoErr(err)
	body, err := v.Synthesize(ctx, tts.SynthesizeRequest{Text: "hello"})
	is.NoErr(err)
	defer body.Close()
	data, err := io.ReadAll(body)
	is.NoErr(err)
	is.Equal(string(data[:4]), "OggS")
}

func TestKindsAreChecked(t *testing.T) {
	is := is.New(t)
	_, err := plugin.NewLLM("missing", nil)
	is.True(err != nil)
}
