package profile

import (
	"github.com/smallbiznis/recovery/internal/profile/repository"
	"github.com/smallbiznis/recovery/internal/profile/service"
	"go.uber.org/fx"
)

var Module = fx.Module("profile.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
