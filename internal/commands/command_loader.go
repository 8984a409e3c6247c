package commands

import (
	"slices"

	"github.com/diamondburned/arikawa/v3/api"
	"github.com/diamondburned/arikawa/v3/discord"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Registrar overwrites the application's slash commands on Discord.
// *session.Session satisfies it.
type Registrar interface {
	BulkOverwriteCommands(appID discord.AppID, cmds []api.CreateCommandData) ([]discord.Command, error)
	BulkOverwriteGuildCommands(appID discord.AppID, guildID discord.GuildID, cmds []api.CreateCommandData) ([]discord.Command, error)
}

// CommandManagerParams holds dependencies for NewCommandManager.
type CommandManagerParams struct {
	fx.In
	ApplicationID discord.AppID
	Logger        *zap.Logger
	Commands      []Command `group:"commands"`
}

// CommandManager looks up commands by name and registers them with Discord.
type CommandManager struct {
	applicationID discord.AppID
	logger        *zap.Logger
	commands      map[string]Command
	order         []string
}

// NewCommandManager indexes the provided commands. Nil entries are skipped
// and the first command registered under a name wins.
func NewCommandManager(params CommandManagerParams) *CommandManager {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	cm := &CommandManager{
		applicationID: params.ApplicationID,
		logger:        logger,
		commands:      make(map[string]Command, len(params.Commands)),
	}
	for _, cmd := range params.Commands {
		if cmd == nil {
			continue
		}
		name := cmd.Name()
		if _, exists := cm.commands[name]; exists {
			logger.Warn("Duplicate command name, keeping the first", zap.String("command_name", name))
			continue
		}
		cm.commands[name] = cmd
		cm.order = append(cm.order, name)
	}

	logger.Info("Loaded commands", zap.Strings("commands", cm.order))
	return cm
}

// GetCommand retrieves a command by its name.
func (cm *CommandManager) GetCommand(name string) (Command, bool) {
	cmd, ok := cm.commands[name]
	return cmd, ok
}

// Names lists the loaded command names in registration order.
func (cm *CommandManager) Names() []string {
	return slices.Clone(cm.order)
}

func (cm *CommandManager) createData() []api.CreateCommandData {
	cmds := make([]api.CreateCommandData, 0, len(cm.order))
	for _, name := range cm.order {
		cmd := cm.commands[name]
		cmds = append(cmds, api.CreateCommandData{
			Name:        cmd.Name(),
			Description: cmd.Description(),
			Options:     cmd.Options(),
		})
	}
	return cmds
}

// RegisterCommands registers every loaded command for the given guilds, or
// globally when guildIDs is empty. A guild that fails is logged and skipped.
func (cm *CommandManager) RegisterCommands(r Registrar, guildIDs []discord.GuildID) error {
	cmds := cm.createData()
	if len(cmds) == 0 {
		cm.logger.Info("No commands to register")
		return nil
	}

	if len(guildIDs) == 0 {
		registered, err := r.BulkOverwriteCommands(cm.applicationID, cmds)
		if err != nil {
			return err
		}
		cm.logger.Info("Registered global slash commands",
			zap.Int("count", len(registered)),
			zap.Stringer("application_id", cm.applicationID))
		return nil
	}

	for _, guildID := range guildIDs {
		registered, err := r.BulkOverwriteGuildCommands(cm.applicationID, guildID, cmds)
		if err != nil {
			cm.logger.Error("Failed to register commands for guild",
				zap.Error(err),
				zap.Stringer("application_id", cm.applicationID),
				zap.Stringer("guild_id", guildID))
			continue
		}
		cm.logger.Info("Registered slash commands for guild",
			zap.Int("count", len(registered)),
			zap.Stringer("application_id", cm.applicationID),
			zap.Stringer("guild_id", guildID))
	}
	return nil
}

// UnregisterAllCommands clears the application's commands in each guild.
func (cm *CommandManager) UnregisterAllCommands(r Registrar, guildIDs []discord.GuildID) {
	for _, guildID := range guildIDs {
		if _, err := r.BulkOverwriteGuildCommands(cm.applicationID, guildID, []api.CreateCommandData{}); err != nil {
			cm.logger.Error("Failed to unregister commands for guild",
				zap.Error(err),
				zap.Stringer("guild_id", guildID))
			continue
		}
		cm.logger.Info("Unregistered slash commands for guild", zap.Stringer("guild_id", guildID))
	}
}
