package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[SyncEntitiesMessage]  = (*SyncEntitiesCommand)(nil)
	_ gocmd.Commander[ListEntitiesMessage]  = (*ListEntitiesCommand)(nil)
	_ gocmd.Commander[PackageAppsMessage]   = (*PackageAppsCommand)(nil)
	_ gocmd.Commander[ExportSamplesMessage] = (*ExportSamplesCommand)(nil)
)
