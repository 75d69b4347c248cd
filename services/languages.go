package services

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Languages knows the source language of spot audio and the translation targets.
type Languages struct {
	source  language.Tag
	targets []language.Tag
	// names maps a lowercase English language name or code to a caption key.
	names map[string]string
}

// NewLanguages parses BCP 47 target tags such as "fr-FR". Audio is assumed to be English.
func NewLanguages(targets []string) (*Languages, error) {
	l := &Languages{source: language.AmericanEnglish, names: map[string]string{}}
	l.register(l.source)
	for _, t := range targets {
		tag, err := language.Parse(strings.TrimSpace(t))
		if err != nil {
			return nil, fmt.Errorf("invalid translation target %q: %w", t, err)
		}
		l.targets = append(l.targets, tag)
		l.register(tag)
	}
	return l, nil
}

func (l *Languages) register(tag language.Tag) {
	key := CaptionKey(tag)
	base, _ := tag.Base()
	l.names[key] = key
	l.names[strings.ToLower(tag.String())] = key
	l.names[strings.ToLower(display.English.Languages().Name(base))] = key
}

// Source is the language spot audio is recorded in.
func (l *Languages) Source() language.Tag { return l.source }

// SourceKey is the caption key of the source language ("en").
func (l *Languages) SourceKey() string { return CaptionKey(l.source) }

// Targets lists the translation targets in configured order.
func (l *Languages) Targets() []language.Tag { return l.targets }

// Resolve maps a language name ("french"), code ("fr") or tag ("fr-FR") to
// a caption key. It reports false for languages that are neither the source
// nor a target.
func (l *Languages) Resolve(input string) (string, bool) {
	in := strings.ToLower(strings.TrimSpace(input))
	if in == "" {
		return "", false
	}
	if key, ok := l.names[in]; ok {
		return key, true
	}
	if tag, err := language.Parse(in); err == nil {
		if key, ok := l.names[CaptionKey(tag)]; ok {
			return key, true
		}
	}
	return "", false
}

// CaptionKey is the base language subtag used to key translated captions.
func CaptionKey(tag language.Tag) string {
	base, _ := tag.Base()
	return base.String()
}
