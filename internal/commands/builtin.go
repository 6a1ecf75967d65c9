package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// RegisterBuiltins registers every command in the command surface: help,
// the session-mutating commands, the config-store commands, and the
// admin group (auth/integration-auth/skills-*/doctor).
func RegisterBuiltins(r *Registry) error {
	return registerAll(r,
		registerHelp,
		RegisterSessionCommands,
		RegisterConfigCommands,
		RegisterAdminCommands,
	)
}

func registerAll(r *Registry, registrars ...func(*Registry)) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%v", rec)
		}
	}()
	for _, reg := range registrars {
		reg(r)
	}
	return nil
}

func registerHelp(r *Registry) {
	if err := r.Register(&Command{
		Name:        "help",
		Aliases:     []string{"h", "?", "commands"},
		Description: "Show available commands",
		Usage:       "/help [command]",
		AcceptsArgs: true,
		Category:    "system",
		Source:      "builtin",
		Handler:     helpHandler(r),
	}); err != nil {
		panic(fmt.Sprintf("failed to register builtin command \"help\": %v", err))
	}
}

// titleCase converts the first letter to uppercase.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Dispatch resolves name against r and invokes it, returning an error that
// names an edit-distance-1 suggestion when name is unregistered.
func Dispatch(ctx context.Context, r *Registry, inv *Invocation) (*Result, error) {
	if _, exists := r.Get(inv.Name); !exists {
		if suggestion, ok := SuggestCommand(inv.Name, r.Names()); ok {
			return nil, fmt.Errorf("unknown command %q; did you mean %q?", inv.Name, suggestion)
		}
		return nil, fmt.Errorf("unknown command %q", inv.Name)
	}
	return r.Execute(ctx, inv)
}

func helpHandler(r *Registry) CommandHandler {
	return func(ctx context.Context, inv *Invocation) (*Result, error) {
		// If specific command requested
		if inv.Args != "" {
			cmdName := strings.ToLower(strings.TrimSpace(inv.Args))
			cmdName = strings.TrimPrefix(cmdName, "/")

			cmd, exists := r.Get(cmdName)
			if !exists {
				msg := fmt.Sprintf("Unknown command: %s\n\nUse /help to see available commands.", cmdName)
				if suggestion, ok := SuggestCommand(cmdName, r.Names()); ok {
					msg = fmt.Sprintf("Unknown command: %s (did you mean %q?)", cmdName, suggestion)
				}
				return &Result{Text: msg}, nil
			}

			var sb strings.Builder
			sb.WriteString(fmt.Sprintf("**/%s**\n", cmd.Name))
			if cmd.Description != "" {
				sb.WriteString(fmt.Sprintf("%s\n", cmd.Description))
			}
			if cmd.Usage != "" {
				sb.WriteString(fmt.Sprintf("\nUsage: `%s`\n", cmd.Usage))
			}
			if len(cmd.Aliases) > 0 {
				aliases := make([]string, len(cmd.Aliases))
				for i, a := range cmd.Aliases {
					aliases[i] = "/" + a
				}
				sb.WriteString(fmt.Sprintf("\nAliases: %s\n", strings.Join(aliases, ", ")))
			}
			if cmd.AdminOnly {
				sb.WriteString("\nAdmin only\n")
			}

			return &Result{
				Text:     sb.String(),
				Markdown: true,
			}, nil
		}

		// List all commands by category
		byCategory := r.ListByCategory()
		categories := make([]string, 0, len(byCategory))
		for cat := range byCategory {
			categories = append(categories, cat)
		}
		sort.Strings(categories)

		var sb strings.Builder
		sb.WriteString("**Available Commands**\n\n")

		for _, category := range categories {
			commands := byCategory[category]
			if len(commands) == 0 {
				continue
			}

			sb.WriteString(fmt.Sprintf("**%s**\n", titleCase(category)))
			for _, cmd := range commands {
				desc := cmd.Description
				if desc == "" {
					desc = "No description"
				}
				sb.WriteString(fmt.Sprintf("  `/%s` - %s\n", cmd.Name, desc))
			}
			sb.WriteString("\n")
		}

		sb.WriteString("Use `/help <command>` for more details.")

		return &Result{
			Text:     sb.String(),
			Markdown: true,
		}, nil
	}
}
