// Package rules matches Chinese customer questions against keyword rules
// mapping to canned answers. A practical default set ships built in; a YAML
// file can replace it at startup and is hot-reloaded while serving, so
// operators can tune answers without a restart.
package rules

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/lingodesk/lingodesk/pkg/logger"
)

// Rule couples a primary keyword with a canned answer, plus aliases that
// trigger the same answer. Matching is case-insensitive substring
// containment.
type Rule struct {
	Keyword string   `yaml:"keyword"`
	Answer  string   `yaml:"answer"`
	Aliases []string `yaml:"aliases,omitempty"`
}

// Defaults returns the built-in rule set.
func Defaults() []Rule {
	return []Rule{
		{
			Keyword: "注册",
			Answer:  "您好，注册只需手机/邮箱即可完成，1分钟内通过验证码激活账号。",
			Aliases: []string{"开户", "开通"},
		},
		{
			Keyword: "登录",
			Answer:  "您好，登录支持账号+密码或短信验证码。如忘记密码可在登录页找回。",
			Aliases: []string{"登入", "登陆"},
		},
		{
			Keyword: "充值",
			Answer:  "您好，充值支持银行卡、电子钱包等方式，实时到账，无手续费。",
			Aliases: []string{"存款", "入金", "top up", "deposit"},
		},
		{
			Keyword: "提现",
			Answer:  "您好，提现提交后一般 5-30 分钟到账，请确保账户已完成实名与绑定。",
			Aliases: []string{"取款", "出金", "withdraw"},
		},
		{
			Keyword: "优惠",
			Answer:  "您好，当前有新手礼包与每日返利，详情请在“优惠活动”页面查看。",
			Aliases: []string{"活动", "折扣", "返利", "bonus", "promotion"},
		},
		{
			Keyword: "规则",
			Answer:  "您好，游戏规则可在对应游戏入口的“玩法说明”查看，简明易懂。",
			Aliases: []string{"玩法", "how to play"},
		},
		{
			Keyword: "安全",
			Answer:  "您好，为保障账号安全，请开启二次验证并勿泄露验证码与密码。",
			Aliases: []string{"风控"},
		},
	}
}

// Responder answers questions from the active rule set. Safe for concurrent
// use; reloads swap the whole set atomically.
type Responder struct {
	mu    sync.RWMutex
	rules []Rule
}

// NewResponder returns a Responder seeded with the built-in rules.
func NewResponder() *Responder {
	return &Responder{rules: Defaults()}
}

// Reply returns the canned answer for a Chinese question, or "" when no rule
// matches so upper layers can fall back to the knowledge store or an echo.
// Primary keywords are checked across all rules before any alias.
func (r *Responder) Reply(textZH string) string {
	q := strings.ToLower(strings.TrimSpace(textZH))
	if q == "" {
		return ""
	}

	rules := r.snapshot()
	for _, rule := range rules {
		if rule.Keyword != "" && strings.Contains(q, strings.ToLower(rule.Keyword)) {
			return rule.Answer
		}
	}
	for _, rule := range rules {
		for _, alias := range rule.Aliases {
			if alias != "" && strings.Contains(q, strings.ToLower(alias)) {
				return rule.Answer
			}
		}
	}
	return ""
}

// Len returns the number of active rules.
func (r *Responder) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

// LoadFile replaces the active rule set with the contents of a YAML file.
// The previous set stays active when loading fails.
func (r *Responder) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading rules file")
	}

	var rules []Rule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return errors.Wrapf(err, "parsing rules file %s", path)
	}
	for i, rule := range rules {
		if strings.TrimSpace(rule.Keyword) == "" {
			return errors.Errorf("rule %d in %s has no keyword", i, path)
		}
		if strings.TrimSpace(rule.Answer) == "" {
			return errors.Errorf("rule %d (%s) in %s has no answer", i, rule.Keyword, path)
		}
	}

	r.mu.Lock()
	r.rules = rules
	r.mu.Unlock()
	return nil
}

// Watch reloads path whenever it changes, blocking until ctx is cancelled.
// The parent directory is watched rather than the file itself so that
// atomic rename-over saves keep being observed.
func (r *Responder) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating rules watcher")
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return errors.Wrapf(err, "watching %s", dir)
	}

	log := logger.G(ctx).WithField("rules_file", path)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := r.LoadFile(path); err != nil {
				log.WithError(err).Warn("rules reload failed, keeping previous rules")
				continue
			}
			log.WithField("rules", r.Len()).Info("rules reloaded")
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Error("rules watcher error")
		case <-ctx.Done():
			return nil
		}
	}
}

func (r *Responder) snapshot() []Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rules
}
