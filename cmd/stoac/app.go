package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/pbrown/stoac/internal/config"
	"github.com/pbrown/stoac/internal/debuglog"
	"github.com/pbrown/stoac/internal/editor"
	"github.com/pbrown/stoac/internal/executor"
	"github.com/pbrown/stoac/internal/history"
	"github.com/pbrown/stoac/internal/models"
	"github.com/pbrown/stoac/internal/store"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

// exitCanceled matches the shell convention for SIGINT.
const exitCanceled = 130

// App encapsulates CLI state and dependencies for testability
type App struct {
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	dbPath     string // Path to the bbolt database
	historyDir string // Directory holding .bash_history / .zsh_history
	shell      string // Default history format for --index-store
	execShell  string // Shell that runs loaded commands
	editor     editor.Editor
	executor   executor.Executor
	log        *debuglog.Logger
}

// NewApp creates a new App with default stdout/stderr/stdin
func NewApp() *App {
	return &App{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		editor: editor.NewTerminal(),
	}
}

// exitError ends the invocation with a specific code. An empty message
// means the outcome was already reported (or needs no report).
type exitError struct {
	code    int
	message string
}

func (e *exitError) Error() string {
	return e.message
}

// options holds the parsed flag values for one invocation.
type options struct {
	load        string
	store       string
	print       bool
	delete      string
	text        string
	interactive bool
	index       int
	shell       string
	printOutput bool
}

// initPaths initializes paths from config if not already set
func (a *App) initPaths() error {
	if a.dbPath == "" {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		a.dbPath = cfg.DBPath
		if a.historyDir == "" {
			a.historyDir = cfg.HistoryDir
		}
		if a.shell == "" {
			a.shell = cfg.Shell
		}
		if a.execShell == "" {
			a.execShell = cfg.ExecShell
		}
		if a.log == nil {
			a.log = debuglog.New(cfg.LogPath(), cfg.DebugLevel)
		}
	}

	if a.shell == "" {
		a.shell = string(history.Bash)
	}
	if a.log == nil {
		a.log = debuglog.Discard()
	}
	if a.executor == nil {
		a.executor = executor.NewShell(a.execShell, a.stdin, a.stdout, a.stderr)
	}
	return nil
}

// Run parses arguments and dispatches to the requested operation
func (a *App) Run(args []string) int {
	return a.RunContext(context.Background(), args)
}

// RunContext is Run with a caller-supplied context (signal handling in main).
// Config is loaded only once an operation runs, so --help and --version work
// without a home directory.
func (a *App) RunContext(ctx context.Context, args []string) int {
	defer func() {
		if a.log != nil {
			a.log.Close()
		}
	}()

	root := a.newRootCmd()
	if len(args) > 0 {
		args = args[1:]
	}
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var exit *exitError
	if errors.As(err, &exit) {
		if exit.message != "" {
			fmt.Fprintln(a.stderr, exit.message)
		}
		return exit.code
	}
	fmt.Fprintf(a.stderr, "error: %v\n", err)
	return 1
}

func (a *App) newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "stoac",
		Short: "stoac - store a command, a helper to keep your cli organized",
		Long: `stoac saves shell commands under short tags so they can be recalled,
edited and run later.

  stoac -s deploy -t "make build && make deploy"   Store a command from text
  stoac -s last -x -1                              Store the last history entry
  stoac -s deploy -i                               Edit the stored command interactively
  stoac -l deploy                                  Edit, then run, the command
  stoac -l deploy -p                               Print the command without running it
  stoac --print                                    List every stored command
  stoac -d deploy                                  Delete a command`,
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.initPaths(); err != nil {
				return err
			}
			return a.dispatch(cmd, &opts)
		},
	}
	cmd.SetIn(a.stdin)
	cmd.SetOut(a.stdout)
	cmd.SetErr(a.stderr)

	f := cmd.Flags()
	f.StringVarP(&opts.load, "load", "l", "", "Loads a command at a given tag")
	f.StringVarP(&opts.store, "store", "s", "", "Stores a command to a given tag")
	f.BoolVar(&opts.print, "print", false, "Prints every stored command")
	f.StringVarP(&opts.delete, "delete", "d", "", "Deletes the command at a given tag")
	f.StringVarP(&opts.text, "text-store", "t", "", "Stores a custom command from text; quote it")
	f.BoolVarP(&opts.interactive, "interactive-store", "i", false, "Edits the command to store in a line editor")
	f.IntVarP(&opts.index, "index-store", "x", 0, "Stores the history entry at a 1-based index (negative counts back from the newest)")
	f.StringVar(&opts.shell, "shell", "", "History format to read with --index-store: bash or zsh (default: config or login shell)")
	f.BoolVarP(&opts.printOutput, "print-output", "p", false, "With --load, print the command instead of running it")

	cmd.MarkFlagsOneRequired("load", "store", "print", "delete")
	cmd.MarkFlagsMutuallyExclusive("load", "store", "print", "delete")
	cmd.MarkFlagsMutuallyExclusive("text-store", "index-store")

	return cmd
}

// dispatch validates flag combinations cobra can't express and routes to an operation.
func (a *App) dispatch(cmd *cobra.Command, opts *options) error {
	ctx := cmd.Context()
	f := cmd.Flags()

	hasSource := f.Changed("text-store") || f.Changed("index-store") || opts.interactive
	if hasSource && !f.Changed("store") {
		return errors.New("--text-store, --index-store and --interactive-store require --store")
	}
	if opts.printOutput && !f.Changed("load") {
		return errors.New("--print-output requires --load")
	}
	if f.Changed("shell") {
		if _, err := history.ParseShell(opts.shell); err != nil {
			return err
		}
	}

	var op string
	var err error
	switch {
	case f.Changed("load"):
		op, err = "load", a.runLoad(ctx, opts.load, opts.printOutput)
	case f.Changed("store"):
		op, err = "store", a.runStore(ctx, opts.store, opts, f.Changed("text-store"), f.Changed("index-store"))
	case opts.print:
		op, err = "print", a.runPrint(ctx)
	case f.Changed("delete"):
		op, err = "delete", a.runDelete(ctx, opts.delete)
	default:
		return errors.New("one of --load, --store, --print or --delete is required")
	}

	var exit *exitError
	if err != nil && !errors.As(err, &exit) {
		a.log.Error(ctx, op, err)
	}
	return err
}

// openStore opens the database; callers close it before handing control to
// the user so other invocations aren't blocked on the file lock.
func (a *App) openStore() (*store.Store, error) {
	a.log.Debug(context.Background(), "opening database", "path", a.dbPath)
	return store.Open(a.dbPath)
}

// runLoad resolves a tag, lets the user edit the command, and runs it
func (a *App) runLoad(ctx context.Context, tag string, printOnly bool) error {
	cmd, err := a.resolve(ctx, tag)
	if err != nil {
		var lookupErr *store.LookupError
		if errors.As(err, &lookupErr) {
			a.log.LookupMissed(ctx, tag, lookupErr.Suggestions)
		}
		return err
	}
	a.log.CommandLoaded(ctx, tag, printOnly)

	if printOnly {
		fmt.Fprintln(a.stdout, cmd.Text)
		return nil
	}

	text, err := a.editor.Edit(ctx, tag+" $", cmd.Text)
	if err != nil {
		return editError(err)
	}
	if err := models.NewCommand(tag, text).Validate(); err != nil {
		return err
	}

	start := time.Now()
	code, err := a.executor.Run(ctx, text)
	if err != nil {
		return err
	}
	a.log.CommandExecuted(ctx, tag, text != cmd.Text, code, time.Since(start))

	if code != 0 {
		return &exitError{code: code}
	}
	return nil
}

func (a *App) resolve(ctx context.Context, tag string) (models.Command, error) {
	s, err := a.openStore()
	if err != nil {
		return models.Command{}, err
	}
	defer s.Close()
	return s.Resolve(ctx, tag)
}

// runStore saves a command from text, shell history, or the line editor
func (a *App) runStore(ctx context.Context, tag string, opts *options, fromText, fromHistory bool) error {
	if err := models.ValidateTag(tag); err != nil {
		return err
	}

	var text, source string
	switch {
	case fromText:
		text, source = opts.text, "text"
	case fromHistory:
		line, err := a.historyLine(orDefault(opts.shell, a.shell), opts.index)
		if err != nil {
			return err
		}
		text, source = line, "history"
	case !opts.interactive:
		return errors.New("--store needs one of --text-store, --index-store or --interactive-store")
	}

	if opts.interactive {
		if source == "" {
			current, err := a.current(ctx, tag)
			if err != nil {
				return err
			}
			text = current
		}
		edited, err := a.editor.Edit(ctx, tag+" >", text)
		if err != nil {
			return editError(err)
		}
		text, source = edited, "interactive"
	}

	cmd := models.NewCommand(tag, text)
	if err := cmd.Validate(); err != nil {
		return err
	}

	s, err := a.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	_, getErr := s.Get(ctx, tag)
	replaced := getErr == nil
	if err := s.Put(ctx, cmd); err != nil {
		return fmt.Errorf("storing %q: %w", tag, err)
	}
	a.log.CommandStored(ctx, tag, source, replaced)

	fmt.Fprintf(a.stdout, "Stored %q: %s\n", cmd.Tag, cmd.Text)
	return nil
}

// current returns the command stored under tag, or "" if there is none.
func (a *App) current(ctx context.Context, tag string) (string, error) {
	s, err := a.openStore()
	if err != nil {
		return "", err
	}
	defer s.Close()

	cmd, err := s.Get(ctx, tag)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return cmd.Text, nil
}

func (a *App) historyLine(shellName string, index int) (string, error) {
	shell, err := history.ParseShell(shellName)
	if err != nil {
		return "", err
	}
	if a.historyDir == "" {
		return "", errors.New("cannot locate shell history: HOME is not set")
	}
	return history.Line(history.Path(a.historyDir, shell), shell, index)
}

// runPrint lists every stored command in tag order
func (a *App) runPrint(ctx context.Context) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	all, err := s.List(ctx)
	if err != nil {
		return fmt.Errorf("listing commands: %w", err)
	}

	if len(all) == 0 {
		fmt.Fprintln(a.stdout, "No commands stored.")
		return nil
	}

	tagStyle := lipgloss.NewRenderer(a.stdout).NewStyle().Bold(true)
	for _, cmd := range all {
		fmt.Fprintf(a.stdout, "%s: %s\n", tagStyle.Render(cmd.Tag), cmd.Text)
	}
	return nil
}

// runDelete removes a stored command
func (a *App) runDelete(ctx context.Context, tag string) error {
	s, err := a.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	existed, err := s.Delete(ctx, tag)
	if err != nil {
		return fmt.Errorf("deleting %q: %w", tag, err)
	}
	a.log.CommandDeleted(ctx, tag, existed)

	if !existed {
		return fmt.Errorf("no command stored under tag %q", tag)
	}
	fmt.Fprintf(a.stdout, "Deleted %q\n", tag)
	return nil
}

func editError(err error) error {
	if errors.Is(err, editor.ErrCanceled) {
		return &exitError{code: exitCanceled, message: "canceled"}
	}
	return err
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
