// Copyright 2026 The Hyperion Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package steering

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-yaml"
	log "github.com/sirupsen/logrus"
)

// maxRuleFileSize guards against pathological YAML documents.
const maxRuleFileSize = 1 * 1024 * 1024

// Engine loads, watches, and applies steering rules.
type Engine struct {
	steeringDir string
	rules       []*Rule
	evaluator   *ConditionEvaluator
	mu          sync.RWMutex

	watcher     *fsnotify.Watcher
	stopWatcher chan struct{}
}

// NewEngine creates an engine rooted at steeringDir. An empty dir defaults
// to ~/.hyperion/steering.
func NewEngine(steeringDir string) (*Engine, error) {
	if steeringDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			wd, _ := os.Getwd()
			steeringDir = filepath.Join(wd, ".hyperion", "steering")
		} else {
			steeringDir = filepath.Join(home, ".hyperion", "steering")
		}
	}

	return &Engine{
		steeringDir: steeringDir,
		rules:       make([]*Rule, 0),
		evaluator:   NewConditionEvaluator(),
		stopWatcher: make(chan struct{}),
	}, nil
}

// LoadRules reads every YAML rule under the steering directory.
// Individual malformed files are logged and skipped, never fatal.
func (e *Engine) LoadRules() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, err := os.Stat(e.steeringDir); os.IsNotExist(err) {
		if err := os.MkdirAll(e.steeringDir, 0755); err != nil {
			return fmt.Errorf("failed to create steering directory: %w", err)
		}
	}

	absSteeringDir, err := filepath.Abs(e.steeringDir)
	if err != nil {
		return fmt.Errorf("failed to resolve steering directory: %w", err)
	}

	newRules := make([]*Rule, 0)

	err = filepath.Walk(e.steeringDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Symlinks could escape the steering directory.
		if info.Mode()&os.ModeSymlink != 0 {
			log.Warnf("Skipping symlink in steering directory: %s", path)
			return nil
		}

		absPath, err := filepath.Abs(path)
		if err != nil {
			log.Warnf("Failed to resolve path %s: %v", path, err)
			return nil
		}
		if !strings.HasPrefix(absPath, absSteeringDir) {
			log.Warnf("Skipping file outside steering directory: %s", path)
			return nil
		}

		if info.IsDir() || (!strings.HasSuffix(path, ".yaml") && !strings.HasSuffix(path, ".yml")) {
			return nil
		}
		if info.Size() > maxRuleFileSize {
			log.Warnf("Skipping oversized steering file: %s (%d bytes)", path, info.Size())
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			log.Errorf("Failed to read steering file %s: %v", path, err)
			return nil
		}

		var rule Rule
		if err := yaml.Unmarshal(data, &rule); err != nil {
			log.Errorf("Failed to parse steering rule %s: %v", path, err)
			return nil
		}

		rule.FilePath = path
		newRules = append(newRules, &rule)
		log.Debugf("Loaded steering rule: %s from %s", rule.Name, path)
		return nil
	})
	if err != nil {
		return err
	}

	sort.Slice(newRules, func(i, j int) bool {
		return newRules[i].Activation.Priority > newRules[j].Activation.Priority
	})

	e.rules = newRules
	log.Infof("Loaded %d steering rules", len(e.rules))
	return nil
}

// FindMatchingRules returns copies of every rule whose condition holds for
// the context, highest priority first.
func (e *Engine) FindMatchingRules(ctx *RoutingContext) ([]*Rule, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	matches := make([]*Rule, 0)
	for _, rule := range e.rules {
		active, err := e.evaluator.Evaluate(rule.Activation.Condition, ctx)
		if err != nil {
			log.Warnf("Failed to evaluate condition for rule %s: %v", rule.Name, err)
			continue
		}
		if active {
			ruleCopy := *rule
			matches = append(matches, &ruleCopy)
		}
	}

	return matches, nil
}

// Apply merges matched rules into routing directives. Rules run in priority
// order; a rule with OverrideRouter set stops further application.
func (e *Engine) Apply(ctx *RoutingContext, rules []*Rule) *Directives {
	d := &Directives{Excluded: make(map[string]bool)}
	if len(rules) == 0 {
		return d
	}

	for _, rule := range rules {
		prefs := rule.Preferences
		applied := false

		for _, tr := range prefs.TimeBasedRules {
			if e.evaluator.CheckTimeRule(tr, ctx.Timestamp) && tr.PreferExpert != "" {
				if d.PinnedExpert == "" {
					d.PinnedExpert = tr.PreferExpert
				}
				applied = true
				break
			}
		}

		if d.PinnedExpert == "" && prefs.PinExpert != "" {
			d.PinnedExpert = prefs.PinExpert
			applied = true
		}

		for _, id := range prefs.ExcludeExperts {
			d.Excluded[id] = true
			applied = true
		}

		if applied {
			d.AppliedRules = append(d.AppliedRules, rule.Name)
		}

		if prefs.OverrideRouter {
			break
		}
	}

	return d
}

// StartWatcher hot-reloads rules when the steering directory changes.
func (e *Engine) StartWatcher() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	e.watcher = watcher

	err = filepath.Walk(e.steeringDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return watcher.Add(path)
		}
		return nil
	})
	if err != nil {
		watcher.Close()
		return err
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
					log.Infof("Steering directory changed (%s), reloading rules...", event.Name)
					time.Sleep(100 * time.Millisecond)
					if err := e.LoadRules(); err != nil {
						log.Errorf("Failed to reload steering rules: %v", err)
					}
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Errorf("Steering watcher error: %v", err)
			case <-e.stopWatcher:
				return
			}
		}
	}()

	return nil
}

// StopWatcher stops the file watcher.
func (e *Engine) StopWatcher() {
	if e.watcher != nil {
		select {
		case <-e.stopWatcher:
		default:
			close(e.stopWatcher)
		}
		e.watcher.Close()
		e.watcher = nil
	}
}

// Rules returns a copy of the loaded rule list.
func (e *Engine) Rules() []*Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	res := make([]*Rule, len(e.rules))
	copy(res, e.rules)
	return res
}
