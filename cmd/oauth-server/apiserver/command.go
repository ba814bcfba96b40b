package apiserver

import (
	"github.com/spf13/cobra"

	"github.com/openkcm/oauth-server/internal/business"
	"github.com/openkcm/oauth-server/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"api-server",
		"OAuth Server API server",
		"OAuth Server API server hosts the registration, login, authorize and token endpoints",
		buildInfo,
		cmdutils.RunAsService,
		business.Main,
	)
}
