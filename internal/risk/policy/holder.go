package policy

import (
	"fmt"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/smallbiznis/recovery/internal/config"
	riskdomain "github.com/smallbiznis/recovery/internal/risk/domain"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Holder serves the action policy in force. When backed by a file it reloads
// on change; an invalid edit is logged and ignored.
type Holder struct {
	current atomic.Value // holds riskdomain.Policy
	path    string
}

func NewHolder(cfg config.Config, log *zap.Logger) (*Holder, error) {
	return Load(cfg.ActionPolicyFile, log)
}

// Load reads path with viper (YAML or JSON, by extension). An empty path
// serves the built-in default policy.
func Load(path string, log *zap.Logger) (*Holder, error) {
	log = log.Named("risk.policy")
	holder := &Holder{path: path}
	if path == "" {
		holder.current.Store(riskdomain.DefaultPolicy())
		log.Info("using default action policy")
		return holder, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	defaults := riskdomain.DefaultPolicy()
	v.SetDefault("rules", defaults.Rules)
	v.SetDefault("grace", defaults.Grace)
	v.SetDefault("default_grace_days", defaults.DefaultGraceDays)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read action policy %s: %w", path, err)
	}
	p, err := decode(v)
	if err != nil {
		return nil, err
	}
	holder.current.Store(p)
	log.Info("action policy loaded", zap.String("path", path), zap.Int("rules", len(p.Rules)))

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := decode(v)
		if err != nil {
			log.Warn("action policy reload ignored", zap.String("path", e.Name), zap.Error(err))
			return
		}
		holder.current.Store(updated)
		log.Info("action policy reloaded", zap.String("path", e.Name), zap.Int("rules", len(updated.Rules)))
	})

	return holder, nil
}

func decode(v *viper.Viper) (riskdomain.Policy, error) {
	var p riskdomain.Policy
	if err := v.Unmarshal(&p); err != nil {
		return riskdomain.Policy{}, fmt.Errorf("%w: %v", riskdomain.ErrInvalidPolicy, err)
	}
	if err := p.Validate(); err != nil {
		return riskdomain.Policy{}, err
	}
	return p, nil
}

func (h *Holder) Current() riskdomain.Policy {
	return h.current.Load().(riskdomain.Policy)
}

func (h *Holder) Path() string {
	return h.path
}
