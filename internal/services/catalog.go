// Package services manages the fixed set of Dockerized AI services the
// server runs: installation from their compose repositories, lifecycle
// through docker compose, and status through the Docker API.
package services

import (
	"fmt"
	"sort"
)

// EnvVar is one .env entry written at install time. Order is preserved in
// the generated file.
type EnvVar struct {
	Key   string
	Value string
}

// Service describes one managed service. The set is fixed; ports are part
// of the server's firewall policy and never change per install.
type Service struct {
	Name        string
	Description string
	Repo        string
	Port        int
	Env         []EnvVar
	// ModelKey names the .env entry that selects the model served, empty
	// when the service has no model choice at install time.
	ModelKey     string
	ModelOptions []string
}

// catalog is the declarative list of managed services. Keep ports in sync
// with the firewall policy: every port listed here is opened per allowed IP.
var catalog = []Service{
	{
		Name:        "ollama",
		Description: "Ollama LLM server (pull models at runtime)",
		Repo:        "https://github.com/profzeller/p16-svc-ollama.git",
		Port:        11434,
		Env: []EnvVar{
			{Key: "OLLAMA_KEEP_ALIVE", Value: "24h"},
		},
	},
	{
		Name:        "vllm",
		Description: "vLLM OpenAI-compatible inference server",
		Repo:        "https://github.com/profzeller/p16-svc-vllm.git",
		Port:        8000,
		Env: []EnvVar{
			{Key: "VLLM_MODEL", Value: "Qwen/Qwen2.5-7B-Instruct"},
			{Key: "VLLM_GPU_MEMORY_UTILIZATION", Value: "0.90"},
			{Key: "VLLM_MAX_MODEL_LEN", Value: "8192"},
		},
		ModelKey: "VLLM_MODEL",
		ModelOptions: []string{
			"Qwen/Qwen2.5-7B-Instruct",
			"meta-llama/Llama-3.1-8B-Instruct",
			"mistralai/Mistral-7B-Instruct-v0.3",
		},
	},
	{
		Name:        "llamacpp",
		Description: "llama.cpp server (GGUF models)",
		Repo:        "https://github.com/profzeller/p16-svc-llamacpp.git",
		Port:        8100,
		Env: []EnvVar{
			{Key: "LLAMACPP_MODEL", Value: "ggml-org/gemma-3-4b-it-GGUF"},
			{Key: "LLAMACPP_CTX_SIZE", Value: "8192"},
		},
		ModelKey: "LLAMACPP_MODEL",
		ModelOptions: []string{
			"ggml-org/gemma-3-4b-it-GGUF",
			"bartowski/Meta-Llama-3.1-8B-Instruct-GGUF",
			"Qwen/Qwen2.5-7B-Instruct-GGUF",
		},
	},
	{
		Name:        "comfyui",
		Description: "ComfyUI image generation workflows",
		Repo:        "https://github.com/profzeller/p16-svc-comfyui.git",
		Port:        8188,
		Env: []EnvVar{
			{Key: "CLI_ARGS", Value: ""},
		},
	},
	{
		Name:        "whisper",
		Description: "Whisper speech-to-text API",
		Repo:        "https://github.com/profzeller/p16-svc-whisper.git",
		Port:        8200,
		Env: []EnvVar{
			{Key: "ASR_MODEL", Value: "base"},
			{Key: "ASR_ENGINE", Value: "openai_whisper"},
		},
		ModelKey: "ASR_MODEL",
		ModelOptions: []string{
			"tiny", "base", "small", "medium", "large-v3",
		},
	},
	{
		Name:        "node-exporter",
		Description: "Prometheus node exporter for host metrics",
		Repo:        "https://github.com/profzeller/p16-svc-node-exporter.git",
		Port:        9100,
	},
}

// Catalog returns the managed services in menu order.
func Catalog() []Service {
	out := make([]Service, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup finds a service by name.
func Lookup(name string) (Service, error) {
	for _, s := range catalog {
		if s.Name == name {
			return s, nil
		}
	}
	return Service{}, fmt.Errorf("unknown service '%s' (known: %v)", name, Names())
}

// Names returns the service names in menu order.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for _, s := range catalog {
		names = append(names, s.Name)
	}
	return names
}

// Ports returns every managed service port, sorted. The firewall opens these
// per allowed IP.
func Ports() []int {
	ports := make([]int, 0, len(catalog))
	for _, s := range catalog {
		ports = append(ports, s.Port)
	}
	sort.Ints(ports)
	return ports
}
