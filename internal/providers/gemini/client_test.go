package gemini

import (
	"bytes"
	"context"
	"errors"
	stdimage "image"
	"image/png"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"

	"productshot/internal/domain"
	"productshot/internal/providers/image"
)

type fakeModel struct {
	parts []genai.Part
	resp  *genai.GenerateContentResponse
	err   error
}

func (f *fakeModel) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.parts = parts
	return f.resp, f.err
}

func tinyPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, stdimage.NewRGBA(stdimage.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("encode: %v", err)
	}
	return buf.Bytes()
}

func responseWith(parts ...genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: "model", Parts: parts}}},
	}
}

func TestGenerateReturnsImagePart(t *testing.T) {
	data := tinyPNG(t, 8, 6)
	model := &fakeModel{resp: responseWith(genai.Text("here you go"), genai.Blob{MIMEType: "image/png", Data: data})}
	client := &Client{model: model, modelName: DefaultModel, logger: zerolog.Nop()}

	out, err := client.Generate(context.Background(), image.Request{
		JobID:       "job-1",
		Instruction: "studio photo",
		Input:       []byte("jpeg-bytes"),
		InputMIME:   "image/jpeg",
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !bytes.Equal(out.Data, data) || out.MIME != "image/png" || out.Width != 8 || out.Height != 6 {
		t.Fatalf("unexpected output %+v", out)
	}
	if len(model.parts) != 2 {
		t.Fatalf("expected instruction and input parts, got %d", len(model.parts))
	}
	if txt, ok := model.parts[0].(genai.Text); !ok || string(txt) != "studio photo" {
		t.Fatalf("unexpected first part %#v", model.parts[0])
	}
	if blob, ok := model.parts[1].(genai.Blob); !ok || blob.MIMEType != "image/jpeg" {
		t.Fatalf("unexpected second part %#v", model.parts[1])
	}
}

func TestGenerateFailuresWrapProviderError(t *testing.T) {
	cases := map[string]*fakeModel{
		"api error":   {err: errors.New("quota exceeded")},
		"text only":   {resp: responseWith(genai.Text("I cannot do that"))},
		"empty":       {resp: &genai.GenerateContentResponse{}},
		"nil content": {resp: &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}},
		"blocked": {resp: &genai.GenerateContentResponse{
			PromptFeedback: &genai.PromptFeedback{BlockReason: genai.BlockReasonSafety},
		}},
	}
	for name, model := range cases {
		t.Run(name, func(t *testing.T) {
			client := &Client{model: model, modelName: DefaultModel, logger: zerolog.Nop()}
			_, err := client.Generate(context.Background(), image.Request{Instruction: "x"})
			if !errors.Is(err, domain.ErrProviderFailure) {
				t.Fatalf("expected ErrProviderFailure, got %v", err)
			}
		})
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(context.Background(), Options{}); err == nil {
		t.Fatalf("expected error without api key")
	}
}
