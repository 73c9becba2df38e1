package agent

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/ignite/guest-reconciler/internal/config"
	"github.com/ignite/guest-reconciler/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInvoker struct {
	got  *bedrockruntime.InvokeModelInput
	body string
	err  error
}

func (f *fakeInvoker) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.got = in
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: []byte(f.body)}, nil
}

func testConfig() config.BedrockConfig {
	return config.BedrockConfig{ModelID: "anthropic.test", MaxTokens: 512, Temperature: 0}
}

func TestClassify_SendsAnthropicMessagesBody(t *testing.T) {
	fake := &fakeInvoker{body: `{"content":[{"type":"text","text":"[{\"groupId\":"},{"type":"text","text":"\"g1\"}]"}],"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":5}}`}
	c := newBedrockClassifier(fake, testConfig())

	out, err := c.Classify(context.Background(), "you group vendors", "1|Acme|transport")
	require.NoError(t, err)
	assert.Equal(t, `[{"groupId":"g1"}]`, out)

	assert.Equal(t, "anthropic.test", aws.ToString(fake.got.ModelId))
	var req BedrockRequest
	require.NoError(t, json.Unmarshal(fake.got.Body, &req))
	assert.Equal(t, "bedrock-2023-05-31", req.AnthropicVersion)
	assert.Equal(t, "you group vendors", req.System)
	assert.Equal(t, 512, req.MaxTokens)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
	assert.Equal(t, "1|Acme|transport", req.Messages[0].Content[0].Text)
}

func TestClassify_Failures(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeInvoker
	}{
		{"api error", &fakeInvoker{err: errors.New("ThrottlingException")}},
		{"bad json", &fakeInvoker{body: "not json"}},
		{"empty content", &fakeInvoker{body: `{"content":[],"stop_reason":"max_tokens"}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newBedrockClassifier(tt.fake, testConfig()).Classify(context.Background(), "s", "p")
			require.Error(t, err)
			assert.Equal(t, domain.KindCollaborator, domain.KindOf(err))
		})
	}
}
