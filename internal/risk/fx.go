package risk

import (
	"github.com/smallbiznis/recovery/internal/risk/domain"
	"github.com/smallbiznis/recovery/internal/risk/policy"
	"github.com/smallbiznis/recovery/internal/risk/service"
	"go.uber.org/fx"
)

var Module = fx.Module("risk.service",
	fx.Provide(policy.NewHolder),
	fx.Provide(func(h *policy.Holder) domain.PolicySource { return h }),
	fx.Provide(service.New),
)
