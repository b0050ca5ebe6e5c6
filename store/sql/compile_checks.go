package sqlstore

import "github.com/goliatone/go-forwarder/core"

var (
	_ core.MessageStore           = (*MessageStore)(nil)
	_ core.RuleStore              = (*RuleStore)(nil)
	_ core.JobStore               = (*JobStore)(nil)
	_ core.LogStore               = (*LogStore)(nil)
	_ core.SettingsStore          = (*SettingsStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
