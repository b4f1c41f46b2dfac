package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed chat_modes.yml
var defaultChatModes []byte

type ChatMode struct {
	Key            string `yaml:"-"`
	Name           string `yaml:"name"`
	WelcomeMessage string `yaml:"welcome_message"`
	PromptStart    string `yaml:"prompt_start"`
	ParseMode      string `yaml:"parse_mode"`
}

// ChatModes is the read-only set of system prompts the bot can run with.
type ChatModes map[string]ChatMode

// LoadChatModes parses the YAML file at path, or the embedded defaults when path is empty.
func LoadChatModes(path string) (ChatModes, error) {
	data := defaultChatModes
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read chat modes %s: %w", path, err)
		}
		data = b
	}
	return ParseChatModes(data)
}

func ParseChatModes(data []byte) (ChatModes, error) {
	raw := map[string]ChatMode{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse chat modes: %w", err)
	}
	if _, ok := raw[DefaultChatMode]; !ok {
		return nil, fmt.Errorf("parse chat modes: default mode %q is missing", DefaultChatMode)
	}
	modes := make(ChatModes, len(raw))
	for key, m := range raw {
		m.Key = key
		if m.Name == "" {
			m.Name = key
		}
		modes[key] = m
	}
	return modes, nil
}

// Get returns the mode by key, falling back to the default mode.
func (m ChatModes) Get(key string) ChatMode {
	if mode, ok := m[key]; ok {
		return mode
	}
	return m[DefaultChatMode]
}

func (m ChatModes) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// Keys returns mode keys in a stable order, default first.
func (m ChatModes) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		if k != DefaultChatMode {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return append([]string{DefaultChatMode}, keys...)
}
