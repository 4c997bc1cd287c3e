/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package msgcat renders user-facing message templates kept in YAML.
package msgcat

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"text/template"

	"github.com/Seednode/wordrace/internal/obslog"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed messages.en.yaml
var defaultFiles embed.FS

// Catalog maps flattened dot-keys ("session.start.quiz") to template text.
type Catalog struct {
	mu        sync.RWMutex
	data      map[string]string
	templates map[string]*template.Template
}

// New loads the embedded English messages and then applies every *.yaml
// file in overrideDir, if one is given.
func New(overrideDir string) (*Catalog, error) {
	c := &Catalog{
		data:      make(map[string]string),
		templates: make(map[string]*template.Template),
	}

	raw, err := fs.ReadFile(defaultFiles, "messages.en.yaml")
	if err != nil {
		return nil, fmt.Errorf("read embedded messages: %w", err)
	}
	if err := c.apply(raw); err != nil {
		return nil, fmt.Errorf("parse embedded messages: %w", err)
	}

	if strings.TrimSpace(overrideDir) != "" {
		if err := c.applyDir(overrideDir); err != nil {
			return nil, err
		}
	}

	return c, nil
}

func (c *Catalog) applyDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read messages dir: %w", err)
	}

	files := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".yaml", ".yml":
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	for _, name := range files {
		b, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		if err := c.apply(b); err != nil {
			return fmt.Errorf("parse %s: %w", name, err)
		}
	}

	return nil
}

func (c *Catalog) apply(b []byte) error {
	var m map[string]any
	if err := yaml.Unmarshal(b, &m); err != nil {
		return err
	}

	flat := make(map[string]string)
	if err := flatten(m, "", flat); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range flat {
		c.data[k] = v
		delete(c.templates, k)
	}

	return nil
}

func flatten(src any, prefix string, out map[string]string) error {
	switch v := src.(type) {
	case map[string]any:
		for k, vv := range v {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if err := flatten(vv, key, out); err != nil {
				return err
			}
		}
		return nil
	case string:
		if prefix == "" {
			return errors.New("string value without key")
		}
		out[prefix] = v
		return nil
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported value at %s: %T", prefix, v)
	}
}

// Render executes the template stored under key. Missing keys, in the
// catalog or in data, are errors.
func (c *Catalog) Render(key string, data any) (string, error) {
	key = strings.TrimSpace(key)

	c.mu.RLock()
	tpl, cached := c.templates[key]
	text, ok := c.data[key]
	c.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("message not found: %s", key)
	}

	if !cached {
		var err error
		tpl, err = template.New(key).Option("missingkey=error").Parse(text)
		if err != nil {
			return "", err
		}

		c.mu.Lock()
		c.templates[key] = tpl
		c.mu.Unlock()
	}

	var b strings.Builder
	if err := tpl.Execute(&b, data); err != nil {
		return "", err
	}

	return b.String(), nil
}

// Text is Render for call sites that cannot fail: a broken template is
// logged and the key itself is returned.
func (c *Catalog) Text(key string, data any) string {
	s, err := c.Render(key, data)
	if err != nil {
		obslog.L().Warn("message_render_failed", zap.String("key", key), zap.Error(err))
		return key
	}

	return s
}
