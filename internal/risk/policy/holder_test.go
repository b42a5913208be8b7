package policy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	casedomain "github.com/smallbiznis/recovery/internal/cases/domain"
	riskdomain "github.com/smallbiznis/recovery/internal/risk/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadWithoutPathServesDefault(t *testing.T) {
	h, err := Load("", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, riskdomain.DefaultPolicy(), h.Current())
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "policy.yaml", `
rules:
  - zone: RED
    min_delay_days: 0
    action: CALL
  - zone: RED
    min_delay_days: 14
    action: ESCALATE
  - zone: YELLOW
    min_delay_days: 0
    action: MAIL
grace:
  - min_late_ratio: 0.5
    days: 2
default_grace_days: 20
`)
	h, err := Load(path, zap.NewNop())
	require.NoError(t, err)

	p := h.Current()
	assert.Len(t, p.Rules, 3)
	assert.Equal(t, casedomain.ActionCall, p.DeriveAction(casedomain.ZoneRed, 10))
	assert.Equal(t, casedomain.ActionEscalate, p.DeriveAction(casedomain.ZoneRed, 14))
	assert.Equal(t, 2, p.GraceDays(0.9))
	assert.Equal(t, 20, p.GraceDays(0.1))
}

func TestLoadJSONKeepsDefaultGrace(t *testing.T) {
	path := writeFile(t, "policy.json", `{"rules":[{"zone":"ORANGE","min_delay_days":0,"action":"MAIL"}]}`)
	h, err := Load(path, zap.NewNop())
	require.NoError(t, err)

	p := h.Current()
	assert.Equal(t, casedomain.ActionMail, p.DeriveAction(casedomain.ZoneOrange, 3))
	assert.Equal(t, 3, p.GraceDays(0.8))
	assert.Equal(t, 15, p.GraceDays(0))
}

func TestLoadRejectsInvalidPolicy(t *testing.T) {
	path := writeFile(t, "policy.yaml", `
rules:
  - zone: PURPLE
    action: CALL
`)
	_, err := Load(path, zap.NewNop())
	require.Error(t, err)
	assert.True(t, errors.Is(err, riskdomain.ErrInvalidPolicy))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), zap.NewNop())
	assert.Error(t, err)
}
