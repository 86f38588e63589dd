package ai

import (
	"context"
	"fmt"

	"github.com/zhouzirui/nexus-social/backend/internal/model/chat"
)

// Provider generates an assistant reply from role-tagged history and the latest prompt.
type Provider interface {
	Generate(ctx context.Context, history []chat.Utterance, prompt string) (string, error)
}

// ProviderError wraps any failure of the generation call: network, auth,
// quota, timeout or a misbehaving model.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// Ensure Service implements Provider.
var _ Provider = (*Service)(nil)
