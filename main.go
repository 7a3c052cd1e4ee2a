// Sybeez - a conversational AI front-end for the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/peterh/liner"

	"github.com/sybeez/sybeez/internal/chat"
	"github.com/sybeez/sybeez/internal/config"
	"github.com/sybeez/sybeez/internal/export"
	"github.com/sybeez/sybeez/internal/gateway"
	"github.com/sybeez/sybeez/internal/keys"
	"github.com/sybeez/sybeez/internal/provider"
	"github.com/sybeez/sybeez/internal/search"
	"github.com/sybeez/sybeez/internal/session"
	"github.com/sybeez/sybeez/internal/storage"
	"github.com/sybeez/sybeez/internal/util"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	logger := newLogger()

	dir, err := dataDir()
	if err != nil {
		logger.Fatal("cannot determine data directory", "err", err)
	}

	app, err := newApp(dir, logger)
	if err != nil {
		logger.Fatal("startup failed", "err", err)
	}
	defer app.Close()

	app.Run()
}

// newLogger builds the process logger. SYBEEZ_LOG=debug enables debug output.
func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "sybeez",
	})
	if strings.EqualFold(os.Getenv("SYBEEZ_LOG"), "debug") {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// dataDir resolves the data directory: SYBEEZ_DATA_DIR or ~/.sybeez.
func dataDir() (string, error) {
	if dir := os.Getenv("SYBEEZ_DATA_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".sybeez"), nil
}

// =============================================================================
// APPLICATION
// =============================================================================

// app wires the core together for the REPL.
type app struct {
	logger  *log.Logger
	bridge  *storage.Bridge
	store   *chat.Store
	cfg     *config.Manager
	keys    *keys.Store
	gw      *gateway.Gateway
	orch    *session.Orchestrator
	index   *search.Index
	watcher *storage.Watcher

	line        *liner.State
	historyFile string

	cancelAutosave context.CancelFunc
}

func newApp(dir string, logger *log.Logger) (*app, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	bridge := storage.NewBridge(dir, logger)

	state := chat.NewState()
	state.Sessions = bridge.LoadSessions()
	state.Settings = bridge.LoadSettings()
	if len(state.Sessions) > 0 {
		state.CurrentSessionID = state.Sessions[0].ID
	}
	store := chat.NewStore(state)
	// Write-through: every mutating transition lands on disk while auto-save
	// is enabled. The ticker in the orchestrator is a safety net, not the
	// primary path.
	bridge.Bind(store)

	cfgMgr, err := config.NewManager(dir, logger)
	if err != nil {
		return nil, err
	}
	keyStore, err := keys.NewStore(dir, logger)
	if err != nil {
		return nil, err
	}

	gw := gateway.New(cfgMgr, keyStore, logger, gateway.WithRateLimit(2, 4))
	orch := session.New(store, gw, bridge, logger)
	orch.OnChunk = func(delta string) { fmt.Print(delta) }

	index, err := search.Open(dir, logger)
	if err != nil {
		return nil, err
	}
	if err := index.Rebuild(state.Sessions); err != nil {
		logger.Warn("search index rebuild failed", "err", err)
	}

	autosaveCtx, cancel := context.WithCancel(context.Background())
	orch.StartAutosave(autosaveCtx, session.DefaultAutosaveInterval)

	// Pick up snapshot edits made by other tools (or a second instance).
	watcher, err := storage.NewWatcher(bridge, storage.DefaultDebounce, func(name string) {
		if name != storage.SessionsFile {
			return
		}
		// A reload mid-generation would clobber the turn in flight.
		if store.State().IsGenerating {
			return
		}
		// The write-through binding fires events for our own saves too;
		// reload only when the snapshot actually differs.
		loaded := bridge.LoadSessions()
		cur, _ := json.Marshal(store.State().Sessions)
		ext, _ := json.Marshal(loaded)
		if bytes.Equal(cur, ext) {
			return
		}
		store.Dispatch(chat.LoadSessions{Sessions: loaded})
		if err := index.Rebuild(store.State().Sessions); err != nil {
			logger.Warn("search index rebuild failed", "err", err)
		}
		logger.Debug("sessions reloaded after external change")
	})
	if err != nil {
		logger.Warn("snapshot watcher unavailable", "err", err)
	} else if err := watcher.Watch(); err != nil {
		logger.Warn("snapshot watcher failed to start", "err", err)
	}

	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	a := &app{
		logger:         logger,
		bridge:         bridge,
		store:          store,
		cfg:            cfgMgr,
		keys:           keyStore,
		gw:             gw,
		orch:           orch,
		index:          index,
		watcher:        watcher,
		line:           line,
		historyFile:    filepath.Join(dir, "repl_history"),
		cancelAutosave: cancel,
	}
	a.loadHistory()
	return a, nil
}

// Close flushes state and releases resources.
func (a *app) Close() {
	if a.watcher != nil {
		if err := a.watcher.Close(); err != nil {
			a.logger.Warn("failed to close snapshot watcher", "err", err)
		}
	}
	a.cancelAutosave()
	a.orch.Flush()
	a.saveHistory()
	a.line.Close()
	if err := a.index.Close(); err != nil {
		a.logger.Warn("failed to close search index", "err", err)
	}
}

func (a *app) loadHistory() {
	f, err := os.Open(a.historyFile)
	if err != nil {
		return
	}
	defer f.Close()
	a.line.ReadHistory(f)
}

func (a *app) saveHistory() {
	f, err := os.Create(a.historyFile)
	if err != nil {
		a.logger.Warn("failed to save input history", "err", err)
		return
	}
	defer f.Close()
	a.line.WriteHistory(f)
}

// =============================================================================
// REPL
// =============================================================================

func (a *app) Run() {
	fmt.Printf("Sybeez %s — type /help for commands, Ctrl+D to quit.\n", Version)
	a.printStatus()

	for {
		input, err := a.line.Prompt("sybeez> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				continue
			}
			fmt.Println()
			return // Ctrl+D or closed input
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		a.line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if quit := a.handleCommand(input); quit {
				return
			}
			continue
		}
		a.send(input)
	}
}

// send runs one user turn. Ctrl+C during generation cancels the stream.
func (a *app) send(content string) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	streaming := a.store.State().Settings.Streaming
	reply := a.orch.SendMessage(ctx, content, nil)
	if streaming && a.gw.IsConfigured() {
		fmt.Println() // OnChunk printed the body already
	} else {
		fmt.Println(reply.Content)
	}
	a.reindex()
}

// reindex refreshes the search index from current state.
func (a *app) reindex() {
	if err := a.index.Rebuild(a.store.State().Sessions); err != nil {
		a.logger.Warn("search index rebuild failed", "err", err)
	}
}

func (a *app) printStatus() {
	if cfg, ok := a.cfg.ActiveConfig(); ok {
		info, _ := provider.Get(cfg.Provider)
		fmt.Printf("Provider: %s  Model: %s  Streaming: %v\n", info.Name, cfg.Model, cfg.Streaming)
	} else {
		fmt.Println("No provider configured — use /provider <id> to pick one.")
	}
}

// =============================================================================
// COMMANDS
// =============================================================================

// handleCommand dispatches a slash command. Returns true to quit.
func (a *app) handleCommand(input string) bool {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/help", "/h":
		a.cmdHelp()
	case "/quit", "/q", "/exit":
		return true
	case "/new":
		sess := a.orch.NewSession()
		fmt.Printf("Started %s\n", sess.Title)
	case "/list", "/ls":
		a.cmdList()
	case "/switch", "/s":
		a.cmdSwitch(args)
	case "/delete", "/rm":
		a.cmdDelete(args)
	case "/pin":
		a.cmdPin(args)
	case "/history":
		a.cmdHistory()
	case "/regen":
		a.cmdRegen()
	case "/edit":
		a.cmdEdit(args)
	case "/export":
		a.cmdExport(args)
	case "/import":
		a.cmdImport(args)
	case "/search":
		a.cmdSearch(args)
	case "/provider":
		a.cmdProvider(args)
	case "/model":
		a.cmdModel(args)
	case "/key":
		a.cmdKey(args)
	case "/stream":
		a.cmdStream(args)
	case "/test":
		a.cmdTest()
	case "/clear":
		a.store.Dispatch(chat.ClearAllSessions{})
		a.orch.Flush()
		a.reindex()
		fmt.Println("All sessions cleared.")
	default:
		fmt.Printf("Unknown command %s — try /help\n", cmd)
	}
	return false
}

func (a *app) cmdHelp() {
	fmt.Print(`Commands:
  /new                     start a new session
  /list                    list sessions
  /switch <n>              switch to session n (from /list)
  /delete <n>              delete session n
  /pin <n>                 pin or unpin session n
  /history                 show the current session transcript
  /regen                   regenerate the last assistant reply
  /edit <n> <text>         edit message n of the current session
  /export [md] [all]       export current session (or all) as JSON or Markdown
  /import <file>           import sessions from a snapshot file
  /search <query>          search messages across all sessions
  /provider [id]           show providers or switch the active one
  /model <name>            switch the active model
  /key <provider> [value]  store (or clear) a provider API key
  /stream on|off           toggle streaming replies
  /test                    test the provider connection
  /clear                   delete all sessions
  /quit                    exit
`)
}

// sessionByArg resolves a 1-based /list index to a session.
func (a *app) sessionByArg(args []string) (chat.Session, bool) {
	state := a.store.State()
	if len(args) == 0 {
		return state.CurrentSession()
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(state.Sessions) {
		fmt.Println("No such session — see /list.")
		return chat.Session{}, false
	}
	return state.Sessions[n-1], true
}

func (a *app) cmdList() {
	state := a.store.State()
	if len(state.Sessions) == 0 {
		fmt.Println("No sessions yet.")
		return
	}
	for i, sess := range state.Sessions {
		marker := "  "
		if sess.ID == state.CurrentSessionID {
			marker = "* "
		}
		fmt.Printf("%s%2d. %s (%d messages, updated %s)\n",
			marker, i+1, session.Summary(sess), len(sess.Messages), sess.UpdatedAt.Format("2006-01-02 15:04"))
	}
}

func (a *app) cmdSwitch(args []string) {
	if sess, ok := a.sessionByArg(args); ok {
		a.orch.SwitchSession(sess.ID)
		fmt.Printf("Switched to %s\n", sess.Title)
	}
}

func (a *app) cmdDelete(args []string) {
	if sess, ok := a.sessionByArg(args); ok {
		a.orch.DeleteSession(sess.ID)
		a.reindex()
		fmt.Printf("Deleted %s\n", sess.Title)
	}
}

func (a *app) cmdPin(args []string) {
	if sess, ok := a.sessionByArg(args); ok {
		a.orch.TogglePin(sess.ID)
		fmt.Printf("Toggled pin on %s\n", sess.Title)
	}
}

func (a *app) cmdHistory() {
	sess, ok := a.store.State().CurrentSession()
	if !ok {
		fmt.Println("No current session.")
		return
	}
	for i, m := range sess.Messages {
		who := "AI"
		if m.IsUser {
			who = "You"
		}
		edited := ""
		if m.IsEdited {
			edited = " (edited)"
		}
		fmt.Printf("%2d. [%s]%s %s\n", i+1, who, edited, m.Content)
	}
}

func (a *app) cmdRegen() {
	sess, ok := a.store.State().CurrentSession()
	if !ok {
		fmt.Println("No current session.")
		return
	}
	var lastAssistant string
	for i := len(sess.Messages) - 1; i >= 0; i-- {
		if !sess.Messages[i].IsUser {
			lastAssistant = sess.Messages[i].ID
			break
		}
	}
	if lastAssistant == "" {
		fmt.Println("Nothing to regenerate.")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	reply := a.orch.RegenerateResponse(ctx, lastAssistant)
	if a.store.State().Settings.Streaming && a.gw.IsConfigured() {
		fmt.Println()
	} else {
		fmt.Println(reply.Content)
	}
	a.reindex()
}

func (a *app) cmdEdit(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: /edit <n> <new text>")
		return
	}
	sess, ok := a.store.State().CurrentSession()
	if !ok {
		fmt.Println("No current session.")
		return
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(sess.Messages) {
		fmt.Println("No such message — see /history.")
		return
	}
	content := strings.Join(args[1:], " ")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	reply := a.orch.EditMessage(ctx, sess.Messages[n-1].ID, content)
	if reply.ID != "" {
		if a.store.State().Settings.Streaming && a.gw.IsConfigured() {
			fmt.Println()
		} else {
			fmt.Println(reply.Content)
		}
	}
	a.reindex()
}

func (a *app) cmdExport(args []string) {
	state := a.store.State()
	markdown := false
	all := false
	for _, arg := range args {
		switch arg {
		case "md", "markdown":
			markdown = true
		case "all":
			all = true
		}
	}

	var data []byte
	var err error
	var name string
	switch {
	case all:
		data, err = export.SessionsJSON(state.Sessions)
		name = "sybeez_sessions.json"
	case markdown:
		sess, ok := state.CurrentSession()
		if !ok {
			fmt.Println("No current session.")
			return
		}
		data, err = export.SessionMarkdown(sess, export.DefaultMarkdownOptions())
		name = "sybeez_session.md"
	default:
		sess, ok := state.CurrentSession()
		if !ok {
			fmt.Println("No current session.")
			return
		}
		data, err = export.SessionJSON(sess)
		name = "sybeez_session.json"
	}
	if err != nil {
		fmt.Printf("Export failed: %v\n", err)
		return
	}
	if err := os.WriteFile(name, data, 0o644); err != nil {
		fmt.Printf("Export failed: %v\n", err)
		return
	}
	fmt.Printf("Exported to %s\n", name)
}

func (a *app) cmdImport(args []string) {
	if len(args) != 1 {
		fmt.Println("Usage: /import <file>")
		return
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Printf("Import failed: %v\n", err)
		return
	}
	imported, err := export.Import(data)
	if err != nil {
		fmt.Printf("Import failed: %v\n", err)
		return
	}

	// Imported sessions go in front; existing sessions are untouched.
	state := a.store.State()
	merged := append(append([]chat.Session{}, imported...), state.Sessions...)
	a.store.Dispatch(chat.LoadSessions{Sessions: merged})
	a.orch.Flush()
	a.reindex()
	fmt.Printf("Imported %d session(s).\n", len(imported))
}

func (a *app) cmdSearch(args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: /search <query>")
		return
	}
	results, err := a.index.Search(context.Background(), strings.Join(args, " "), 20)
	if err != nil {
		fmt.Printf("Search failed: %v\n", err)
		return
	}
	if len(results) == 0 {
		fmt.Println("No matches.")
		return
	}
	for _, r := range results {
		who := "AI"
		if r.IsUser {
			who = "You"
		}
		fmt.Printf("[%s] %s: %s\n", r.SessionTitle, who, util.TruncateRunes(r.Content, 80))
	}
}

func (a *app) cmdProvider(args []string) {
	if len(args) == 0 {
		for _, id := range provider.IDs() {
			info, _ := provider.Get(id)
			key := ""
			if info.RequiresAPIKey {
				key = " (API key required)"
			}
			fmt.Printf("  %-12s %s%s\n", id, info.Description, key)
		}
		return
	}

	id := args[0]
	cfg, err := a.cfg.Update(config.Patch{Provider: &id})
	if err != nil {
		fmt.Printf("Cannot switch provider: %v\n", err)
		return
	}
	info, _ := provider.Get(id)
	fmt.Printf("Now using %s with %s.\n", info.Name, cfg.Model)
	if info.RequiresAPIKey && !a.keys.HasAPIKey(id) {
		fmt.Printf("No API key stored — set one with /key %s <value>.\n", id)
	}
}

func (a *app) cmdModel(args []string) {
	if len(args) != 1 {
		if cfg, ok := a.cfg.ActiveConfig(); ok {
			info, _ := provider.Get(cfg.Provider)
			fmt.Printf("Current model: %s. Available: %s\n", cfg.Model, strings.Join(info.Models, ", "))
		} else {
			fmt.Println("No provider configured.")
		}
		return
	}
	if _, err := a.cfg.Update(config.Patch{Model: &args[0]}); err != nil {
		fmt.Printf("Cannot switch model: %v\n", err)
		return
	}
	fmt.Printf("Model set to %s.\n", args[0])
}

func (a *app) cmdKey(args []string) {
	if len(args) == 0 {
		fmt.Println("Usage: /key <provider> [value]   (omit value to clear)")
		return
	}
	id := args[0]
	if _, ok := provider.Get(id); !ok {
		fmt.Printf("Unknown provider %s.\n", id)
		return
	}
	value := ""
	if len(args) > 1 {
		value = args[1]
	}
	if err := a.keys.SetAPIKey(id, value); err != nil {
		fmt.Printf("Failed to store key: %v\n", err)
		return
	}
	if value == "" {
		fmt.Printf("Cleared API key for %s.\n", id)
	} else {
		fmt.Printf("Stored API key for %s.\n", id)
	}
}

func (a *app) cmdStream(args []string) {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		fmt.Println("Usage: /stream on|off")
		return
	}
	on := args[0] == "on"
	a.orch.UpdateSettings(chat.SettingsPatch{Streaming: &on})
	if _, err := a.cfg.Update(config.Patch{Streaming: &on}); err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Debug("config streaming update skipped", "err", err)
	}
	fmt.Printf("Streaming %s.\n", args[0])
}

func (a *app) cmdTest() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := a.gw.TestConnection(ctx); err != nil {
		fmt.Printf("Connection test failed (%s): %v\n", gateway.Classify(err), err)
		return
	}
	fmt.Println("Connection OK.")
}
