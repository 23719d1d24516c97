package factory

import (
	"testing"

	"github.com/iWorld-y/opinion_radar/internal/config"
)

func TestNewSearcher_DefaultTavily(t *testing.T) {
	cfg := &config.SearchConfig{Tavily: config.TavilyConfig{APIKey: "tvly-test"}}
	s, err := NewSearcher(cfg)
	if err != nil {
		t.Fatalf("NewSearcher() error = %v", err)
	}
	if s == nil {
		t.Fatal("NewSearcher() = nil, want tavily client")
	}
}

func TestNewSearcher_Unconfigured(t *testing.T) {
	s, err := NewSearcher(&config.SearchConfig{})
	if err != nil {
		t.Fatalf("NewSearcher() error = %v, want nil", err)
	}
	if s != nil {
		t.Errorf("NewSearcher() = %v, want nil searcher", s)
	}
}

func TestNewSearcher_TavilyMissingKey(t *testing.T) {
	s, err := NewSearcher(&config.SearchConfig{Provider: "tavily"})
	if err != nil {
		t.Fatalf("NewSearcher() error = %v, want nil", err)
	}
	if s != nil {
		t.Errorf("NewSearcher() = %v, want nil searcher", s)
	}
}

func TestNewSearcher_SearXNG(t *testing.T) {
	cfg := &config.SearchConfig{
		Provider: "searxng",
		SearXNG:  config.SearXNGConfig{BaseURL: "http://localhost:8888"},
	}
	s, err := NewSearcher(cfg)
	if err != nil {
		t.Fatalf("NewSearcher() error = %v", err)
	}
	if s == nil {
		t.Fatal("NewSearcher() = nil, want searxng client")
	}
}

func TestNewSearcher_UnknownProvider(t *testing.T) {
	if _, err := NewSearcher(&config.SearchConfig{Provider: "bing"}); err == nil {
		t.Fatal("NewSearcher() error = nil, want unknown provider error")
	}
}
