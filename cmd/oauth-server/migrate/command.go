package migrate

import (
	"github.com/spf13/cobra"

	"github.com/openkcm/oauth-server/internal/business"
	"github.com/openkcm/oauth-server/internal/cmdutils"
)

func Cmd(buildInfo string) *cobra.Command {
	return cmdutils.CobraCommand(
		"migrate",
		"OAuth Server migrations",
		"Applies the credential store schema migrations of the configured database driver",
		buildInfo,
		cmdutils.RunAsJob,
		business.MigrateMain,
	)
}
