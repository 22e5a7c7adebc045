package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteEnvFileKeepsCatalogOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	defaults := []EnvVar{
		{Key: "VLLM_MODEL", Value: "Qwen/Qwen2.5-7B-Instruct"},
		{Key: "VLLM_GPU_MEMORY_UTILIZATION", Value: "0.90"},
	}

	require.NoError(t, WriteEnvFile(path, defaults, map[string]string{
		"VLLM_MODEL": "mistralai/Mistral-7B-Instruct-v0.3",
		"HF_TOKEN":   "secret",
		"EXTRA_A":    "1",
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")

	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "#"), "generated file starts with a usage comment")
	assert.Equal(t, "VLLM_MODEL=mistralai/Mistral-7B-Instruct-v0.3", lines[1], "override wins over the default")
	assert.Equal(t, "VLLM_GPU_MEMORY_UTILIZATION=0.90", lines[2])
	// Override-only keys are appended alphabetically.
	assert.Equal(t, "EXTRA_A=1", lines[3])
	assert.Equal(t, "HF_TOKEN=secret", lines[4])
}

func TestReadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := `# comment
VLLM_MODEL=Qwen/Qwen2.5-7B-Instruct

QUOTED="hello world"
SPACED = padded
BROKEN LINE WITHOUT EQUALS
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	values, err := ReadEnvFile(path)
	require.NoError(t, err)

	assert.Equal(t, "Qwen/Qwen2.5-7B-Instruct", values["VLLM_MODEL"])
	assert.Equal(t, "hello world", values["QUOTED"])
	assert.Equal(t, "padded", values["SPACED"])
	assert.Len(t, values, 3, "comments, blanks and junk lines are skipped")
}

func TestReadEnvFileMissing(t *testing.T) {
	values, err := ReadEnvFile(filepath.Join(t.TempDir(), ".env"))
	require.NoError(t, err)
	assert.Empty(t, values)
}

func TestUpdateEnvFilePreservesComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := `# Service configuration. Edit and run 'p16ctl service restart' to apply.
ASR_MODEL=base
ASR_ENGINE=openai_whisper
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	require.NoError(t, UpdateEnvFile(path, map[string]string{
		"ASR_MODEL": "large-v3",
		"NEW_KEY":   "added",
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")

	require.Len(t, lines, 4)
	assert.Equal(t, "# Service configuration. Edit and run 'p16ctl service restart' to apply.", lines[0])
	assert.Equal(t, "ASR_MODEL=large-v3", lines[1], "existing key updated in place")
	assert.Equal(t, "ASR_ENGINE=openai_whisper", lines[2], "untouched key keeps its value")
	assert.Equal(t, "NEW_KEY=added", lines[3], "unknown keys are appended")
}

func TestUpdateEnvFileCreatesMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")

	require.NoError(t, UpdateEnvFile(path, map[string]string{"B_KEY": "2", "A_KEY": "1"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "A_KEY=1\nB_KEY=2\n", string(data))
}
