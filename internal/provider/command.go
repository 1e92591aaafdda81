package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// CommandProvider runs an external binary per text. The binary receives the
// text as its last argument and prints a JSON array of numbers.
type CommandProvider struct {
	binaryPath string
	args       []string
	timeout    time.Duration
}

func NewCommandProvider(binaryPath string, args []string) (*CommandProvider, error) {
	if binaryPath == "" {
		return nil, fmt.Errorf("binary path is required for command provider")
	}
	return &CommandProvider{
		binaryPath: binaryPath,
		args:       args,
		timeout:    2 * time.Minute,
	}, nil
}

func (p *CommandProvider) Name() string {
	return "command-" + p.binaryPath
}

func (p *CommandProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	fullArgs := append(append([]string{}, p.args...), text)

	execCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(execCtx, p.binaryPath, fullArgs...) // #nosec G204
	var stderr strings.Builder
	cmd.Stderr = &stderr

	output, err := cmd.Output()
	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("embedding command timed out: %w", err)
		}
		return nil, fmt.Errorf("embedding command failed: %w\nOutput: %s", err, stderr.String())
	}

	var vec []float32
	if err := json.Unmarshal(output, &vec); err != nil {
		return nil, fmt.Errorf("embedding command printed invalid vector: %w", err)
	}
	if len(vec) == 0 {
		return nil, ErrNoEmbedding
	}
	return vec, nil
}
