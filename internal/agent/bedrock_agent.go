// Package agent wraps the text-classification model used to propose vendor
// duplicate groups. The model runs on AWS Bedrock so roster data stays
// inside the AWS account.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/ignite/guest-reconciler/internal/config"
	"github.com/ignite/guest-reconciler/internal/domain"
	"github.com/ignite/guest-reconciler/internal/pkg/awscfg"
)

// invoker is the subset of the Bedrock runtime client used here.
type invoker interface {
	InvokeModel(ctx context.Context, in *bedrockruntime.InvokeModelInput, opts ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockClassifier sends one system prompt and one user prompt to a
// Claude model and returns the text of the reply.
type BedrockClassifier struct {
	client      invoker
	modelID     string
	maxTokens   int
	temperature float64
	timeout     time.Duration
}

// BedrockMessage represents a message in Bedrock format
type BedrockMessage struct {
	Role    string                `json:"role"`
	Content []BedrockContentBlock `json:"content"`
}

// BedrockContentBlock represents content in a message
type BedrockContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// BedrockRequest is the Anthropic messages body sent to InvokeModel
type BedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []BedrockMessage `json:"messages"`
	Temperature      float64          `json:"temperature"`
}

// BedrockResponse is the response from Bedrock
type BedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// NewBedrockClassifier creates a classifier from configuration.
func NewBedrockClassifier(ctx context.Context, cfg config.BedrockConfig) (*BedrockClassifier, error) {
	awsCfg, err := awscfg.Load(ctx, awscfg.Options{
		Region:    cfg.Region,
		Profile:   cfg.AWSProfile,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
	})
	if err != nil {
		return nil, err
	}

	log.Printf("BedrockClassifier: Initialized with model=%s, region=%s", cfg.ModelID, cfg.Region)
	return newBedrockClassifier(bedrockruntime.NewFromConfig(awsCfg), cfg), nil
}

func newBedrockClassifier(client invoker, cfg config.BedrockConfig) *BedrockClassifier {
	return &BedrockClassifier{
		client:      client,
		modelID:     cfg.ModelID,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		timeout:     cfg.Timeout(),
	}
}

// Classify returns the model's text reply. Any transport, model or decoding
// failure is a collaborator error.
func (b *BedrockClassifier) Classify(ctx context.Context, system, prompt string) (string, error) {
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	request := BedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        b.maxTokens,
		System:           system,
		Messages: []BedrockMessage{{
			Role:    "user",
			Content: []BedrockContentBlock{{Type: "text", Text: prompt}},
		}},
		Temperature: b.temperature,
	}
	requestBody, err := json.Marshal(request)
	if err != nil {
		return "", domain.CollaboratorError("bedrock.classify", fmt.Errorf("marshal request: %w", err))
	}

	output, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        requestBody,
	})
	if err != nil {
		return "", domain.CollaboratorError("bedrock.classify", fmt.Errorf("Bedrock API error: %w", err))
	}

	var response BedrockResponse
	if err := json.Unmarshal(output.Body, &response); err != nil {
		return "", domain.CollaboratorError("bedrock.classify", fmt.Errorf("parse response: %w", err))
	}

	var text strings.Builder
	for _, content := range response.Content {
		if content.Type == "text" {
			text.WriteString(content.Text)
		}
	}
	if text.Len() == 0 {
		return "", domain.CollaboratorError("bedrock.classify",
			fmt.Errorf("empty response (stop_reason=%s)", response.StopReason))
	}

	log.Printf("BedrockClassifier: Processed prompt (in: %d tokens, out: %d tokens, stop: %s)",
		response.Usage.InputTokens, response.Usage.OutputTokens, response.StopReason)
	return text.String(), nil
}

// ModelID returns the Bedrock model being used
func (b *BedrockClassifier) ModelID() string { return b.modelID }
