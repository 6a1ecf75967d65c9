package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ConfigStoreDir names the context key holding the directory the /profile,
// /macro, /branch-alias, and /session-bookmark commands persist their
// NamedStore files under.
const configStoreDirKey = "config_store_dir"

// WithConfigStoreDir attaches the directory config-surface commands should
// use for their NamedStore files.
func WithConfigStoreDir(inv *Invocation, dir string) {
	if inv.Context == nil {
		inv.Context = map[string]any{}
	}
	inv.Context[configStoreDirKey] = dir
}

func configStore(inv *Invocation, filename string) (*NamedStore, error) {
	dir, _ := inv.Context[configStoreDirKey].(string)
	if dir == "" {
		return nil, fmt.Errorf("%s: no config store directory configured", filename)
	}
	return NewNamedStore(filepath.Join(dir, filename)), nil
}

// RegisterConfigCommands registers /profile, /macro, /branch-alias, and
// /session-bookmark. profile/branch-alias/session-bookmark follow the
// save|load|list|show|delete verb set; macro follows set|list|use|delete.
func RegisterConfigCommands(r *Registry) {
	mustRegister := func(cmd *Command) {
		if err := r.Register(cmd); err != nil {
			panic(fmt.Sprintf("failed to register builtin command %q: %v", cmd.Name, err))
		}
	}

	mustRegister(&Command{
		Name:        "profile",
		Usage:       "/profile <save|load|list|show|delete> [name]",
		Description: "Save or load a named configuration profile",
		AcceptsArgs: true,
		Category:    "config",
		Source:      "builtin",
		Handler:     saveLoadHandler("profiles.json", "Profile"),
	})

	mustRegister(&Command{
		Name:        "branch-alias",
		Usage:       "/branch-alias <save|load|list|show|delete> [name]",
		Description: "Name the active head so it can be addressed by alias",
		AcceptsArgs: true,
		Category:    "session",
		Source:      "builtin",
		Handler:     saveLoadHandler("branch-aliases.json", "Branch alias"),
	})

	mustRegister(&Command{
		Name:        "session-bookmark",
		Usage:       "/session-bookmark <save|load|list|show|delete> [name]",
		Description: "Bookmark the active head for later recall",
		AcceptsArgs: true,
		Category:    "session",
		Source:      "builtin",
		Handler:     saveLoadHandler("bookmarks.json", "Bookmark"),
	})

	mustRegister(&Command{
		Name:        "macro",
		Usage:       "/macro <set|list|use|delete> [name] [body]",
		Description: "Record and replay a named command sequence",
		AcceptsArgs: true,
		Category:    "config",
		Source:      "builtin",
		Handler:     macroHandler,
	})
}

// saveLoadHandler builds a save|load|list|show|delete handler over a
// NamedStore at storeFile. "save" binds the name to the invocation's
// current active head entry id, when a SessionRuntime is attached; any
// further words become the entry's note.
func saveLoadHandler(storeFile, label string) CommandHandler {
	return func(ctx context.Context, inv *Invocation) (*Result, error) {
		fields := strings.Fields(inv.Args)
		if len(fields) == 0 {
			return nil, fmt.Errorf("%s: a verb is required (save|load|list|show|delete)", strings.ToLower(label))
		}
		verb := strings.ToLower(fields[0])
		rest := fields[1:]

		store, err := configStore(inv, storeFile)
		if err != nil {
			return nil, err
		}

		switch verb {
		case "list":
			entries, err := store.List()
			if err != nil {
				return nil, err
			}
			if len(entries) == 0 {
				return &Result{Text: fmt.Sprintf("No %ss saved.", strings.ToLower(label))}, nil
			}
			var names []string
			for _, e := range entries {
				names = append(names, e.Name)
			}
			return &Result{Text: strings.Join(names, "\n"), Data: map[string]any{"names": names}}, nil

		case "save":
			if len(rest) == 0 {
				return nil, fmt.Errorf("%s save: a name is required", strings.ToLower(label))
			}
			name := rest[0]
			value := ""
			if rt, err := sessionRuntimeFrom(inv); err == nil && rt.ActiveHead != nil {
				value = strconv.FormatUint(*rt.ActiveHead, 10)
			}
			note := strings.Join(rest[1:], " ")
			if err := store.Save(name, value, note); err != nil {
				return nil, fmt.Errorf("%s save: %w", strings.ToLower(label), err)
			}
			return &Result{Text: fmt.Sprintf("%s %q saved.", label, name)}, nil

		case "load", "show":
			if len(rest) == 0 {
				return nil, fmt.Errorf("%s %s: a name is required", strings.ToLower(label), verb)
			}
			name := rest[0]
			entry, ok, err := store.Load(name)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("%s %q not found", strings.ToLower(label), name)
			}
			if verb == "load" {
				if rt, err := sessionRuntimeFrom(inv); err == nil && entry.Value != "" {
					if id, err := strconv.ParseUint(entry.Value, 10, 64); err == nil {
						*rt.ActiveHead = id
					}
				}
			}
			return &Result{
				Text: fmt.Sprintf("%s: name=%s value=%s note=%s", label, entry.Name, entry.Value, entry.Note),
				Data: map[string]any{"name": entry.Name, "value": entry.Value, "note": entry.Note},
			}, nil

		case "delete":
			if len(rest) == 0 {
				return nil, fmt.Errorf("%s delete: a name is required", strings.ToLower(label))
			}
			name := rest[0]
			existed, err := store.Delete(name)
			if err != nil {
				return nil, err
			}
			if !existed {
				return nil, fmt.Errorf("%s %q not found", strings.ToLower(label), name)
			}
			return &Result{Text: fmt.Sprintf("%s %q deleted.", label, name)}, nil

		default:
			return nil, fmt.Errorf("%s: unknown verb %q (want save|load|list|show|delete)", strings.ToLower(label), verb)
		}
	}
}

func macroHandler(ctx context.Context, inv *Invocation) (*Result, error) {
	fields := strings.Fields(inv.Args)
	if len(fields) == 0 {
		return nil, fmt.Errorf("macro: a verb is required (set|list|use|delete)")
	}
	verb := strings.ToLower(fields[0])
	rest := fields[1:]

	store, err := configStore(inv, "macros.json")
	if err != nil {
		return nil, err
	}

	switch verb {
	case "list":
		entries, err := store.List()
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return &Result{Text: "No macros saved."}, nil
		}
		var names []string
		for _, e := range entries {
			names = append(names, e.Name)
		}
		return &Result{Text: strings.Join(names, "\n"), Data: map[string]any{"names": names}}, nil

	case "set":
		if len(rest) < 2 {
			return nil, fmt.Errorf("macro set: a name and a command body are required")
		}
		name, body := rest[0], strings.Join(rest[1:], " ")
		if err := store.Save(name, body, ""); err != nil {
			return nil, fmt.Errorf("macro set: %w", err)
		}
		return &Result{Text: fmt.Sprintf("Macro %q saved.", name)}, nil

	case "use":
		if len(rest) == 0 {
			return nil, fmt.Errorf("macro use: a name is required")
		}
		entry, ok, err := store.Load(rest[0])
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("macro %q not found", rest[0])
		}
		return &Result{Text: entry.Value, Data: map[string]any{"action": "run_macro", "body": entry.Value}}, nil

	case "delete":
		if len(rest) == 0 {
			return nil, fmt.Errorf("macro delete: a name is required")
		}
		existed, err := store.Delete(rest[0])
		if err != nil {
			return nil, err
		}
		if !existed {
			return nil, fmt.Errorf("macro %q not found", rest[0])
		}
		return &Result{Text: fmt.Sprintf("Macro %q deleted.", rest[0])}, nil

	default:
		return nil, fmt.Errorf("macro: unknown verb %q (want set|list|use|delete)", verb)
	}
}
