package googleEmbedding

import (
	"errors"

	"github.com/akolanti/rightsbot/pkg/logger_i"
	"google.golang.org/genai"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func getContent(chunks []string) []*genai.Content {
	contentsToSend := make([]*genai.Content, 0, len(chunks))

	for _, chunk := range chunks {
		contentsToSend = append(contentsToSend, &genai.Content{
			Parts: []*genai.Part{{Text: chunk}},
		})
	}
	return contentsToSend
}

func doRetry(err error, log *logger_i.Logger) bool {
	if err == nil {
		return false
	}
	if s, ok := status.FromError(err); ok && s.Code() == codes.ResourceExhausted {
		log.Error("Rate limit hit", "error", err)
		return true
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		log.Error("Rate limit hit", "error", err)
		return true
	}
	return false
}

func vectorsFrom(res *genai.EmbedContentResponse) [][]float32 {
	results := make([][]float32, 0, len(res.Embeddings))
	for _, r := range res.Embeddings {
		results = append(results, r.Values)
	}
	return results
}
