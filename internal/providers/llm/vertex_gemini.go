package llm

import (
	"context"
	"errors"
	"strings"

	vertexgenai "cloud.google.com/go/vertexai/genai"
	"google.golang.org/api/iterator"
)

type VertexGemini struct {
	client *vertexgenai.Client
	chat   *vertexgenai.GenerativeModel
	vision *vertexgenai.GenerativeModel
}

func NewVertexGemini(ctx context.Context, projectID, location, modelName string) (*VertexGemini, error) {
	c, err := vertexgenai.NewClient(ctx, projectID, location)
	if err != nil {
		return nil, err
	}

	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}

	chat := c.GenerativeModel(modelName)
	chat.SetTemperature(0.3)
	chat.SetTopP(0.8)
	chat.SetMaxOutputTokens(512)

	vision := c.GenerativeModel(modelName)
	vision.SetTemperature(0.2)
	vision.ResponseMIMEType = "application/json"

	return &VertexGemini{client: c, chat: chat, vision: vision}, nil
}

func (v *VertexGemini) Close() error { return v.client.Close() }

func (v *VertexGemini) StreamAnswer(ctx context.Context, prompt string) (<-chan string, <-chan error) {
	out := make(chan string, 32)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		it := v.chat.GenerateContentStream(ctx, vertexgenai.Text(prompt))
		for {
			resp, err := it.Next()
			if errors.Is(err, iterator.Done) {
				return
			}
			if err != nil {
				errs <- err
				return
			}
			for _, t := range texts(resp) {
				select {
				case out <- t:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
		}
	}()

	return out, errs
}

func (v *VertexGemini) AnalyzeImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	resp, err := v.vision.GenerateContent(ctx,
		vertexgenai.Blob{MIMEType: mimeType, Data: image},
		vertexgenai.Text(prompt),
	)
	if err != nil {
		return "", err
	}
	out := strings.Join(texts(resp), "")
	if out == "" {
		return "", errors.New("empty response from model")
	}
	return out, nil
}

func texts(resp *vertexgenai.GenerateContentResponse) []string {
	var out []string
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if t, ok := part.(vertexgenai.Text); ok && string(t) != "" {
				out = append(out, string(t))
			}
		}
	}
	return out
}

var _ Provider = (*VertexGemini)(nil)
