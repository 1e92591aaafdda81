package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/mnemo/internal/cache"
	"github.com/felixgeelhaar/mnemo/internal/config"
	"github.com/felixgeelhaar/mnemo/internal/credential"
	"github.com/felixgeelhaar/mnemo/internal/events"
	"github.com/felixgeelhaar/mnemo/internal/memory"
	"github.com/felixgeelhaar/mnemo/internal/observe"
	"github.com/felixgeelhaar/mnemo/internal/provider"
	"github.com/felixgeelhaar/mnemo/internal/store"
	"github.com/felixgeelhaar/mnemo/internal/vector"
)

// app holds everything a command needs. Memory and the embedder are only
// opened by commands that touch memory.
type app struct {
	home     string
	cfg      config.Config
	obs      *observe.Observer
	store    *store.SQLiteStore
	bus      *events.Bus
	embedder provider.Embedder
	mem      *memory.Memory
	out      io.Writer
	errOut   io.Writer
	jsonOut  bool
}

func openApp(cmd *cobra.Command, opts *options) (*app, error) {
	home, err := resolveHome(opts.home)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(home, 0750); err != nil {
		return nil, fmt.Errorf("failed to create home %s: %w", home, err)
	}

	var obs *observe.Observer
	if opts.jsonOut {
		obs = observe.NewJSON(cmd.ErrOrStderr(), opts.verbose)
	} else {
		obs = observe.New(cmd.ErrOrStderr(), opts.verbose)
	}
	opened := false
	defer func() {
		if !opened {
			_ = obs.Close()
		}
	}()

	cfg, err := loadConfig(home, opts.configPath)
	if err != nil {
		return nil, err
	}
	res := cfg.Validate()
	for _, w := range res.Warnings {
		obs.Log().Warn().Msg(w)
	}
	if !res.Valid {
		return nil, fmt.Errorf("invalid configuration: %v", res.Errors)
	}

	key, err := credential.LoadOrCreateKey(filepath.Join(home, "secret.key"))
	if err != nil {
		return nil, fmt.Errorf("failed to load secret key: %w", err)
	}
	sealer, err := credential.NewSealer(key)
	if err != nil {
		return nil, err
	}
	s, err := store.NewSQLiteStore(filepath.Join(home, "settings.db"), sealer)
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}

	a := &app{
		home:    home,
		cfg:     cfg,
		obs:     obs,
		store:   s,
		bus:     events.NewBus(),
		out:     cmd.OutOrStdout(),
		errOut:  cmd.ErrOrStderr(),
		jsonOut: opts.jsonOut,
	}
	if opts.verbose {
		a.bus.SubscribeAll(func(e events.Event) {
			obs.Log().Info().Str("event", string(e.Type)).Str("id", e.EntryID).Str("user", e.UserID).Msg("memory event")
		})
	}
	opened = true
	return a, nil
}

// openMemory builds the embedder and opens the memory file.
func (a *app) openMemory() (*memory.Memory, error) {
	if a.mem != nil {
		return a.mem, nil
	}

	interval, err := a.cfg.AutoSaveInterval()
	if err != nil {
		return nil, err
	}

	emb, err := a.newEmbedder()
	if err != nil {
		return nil, err
	}

	vs, err := vector.NewStore(a.cfg.MemoryPath(a.home),
		cache.WithCompression(a.cfg.Memory.Compression),
		cache.WithAutoSave(interval),
		cache.WithLogger(a.obs.Log()),
	)
	if err != nil {
		provider.Close(emb)
		return nil, err
	}

	a.embedder = emb
	a.mem = memory.New(vs, emb, memory.WithObserver(a.obs), memory.WithEvents(a.bus))
	a.obs.Log().Info().Str("path", vs.Path()).Str("provider", emb.Name()).Int("entries", a.mem.Len()).Msg("memory opened")
	return a.mem, nil
}

func (a *app) newEmbedder() (provider.Embedder, error) {
	return provider.New(a.cfg.Embedding, a.store)
}

// Close flushes memory and releases everything openApp acquired.
func (a *app) Close() error {
	var errs []error
	if a.mem != nil {
		errs = append(errs, a.mem.Close())
	}
	if a.embedder != nil {
		errs = append(errs, provider.Close(a.embedder))
	}
	errs = append(errs, a.store.Close(), a.obs.Close())
	return errors.Join(errs...)
}

// spin shows a progress spinner on stderr while an embedding is computed and
// returns the function that stops it. It is a no-op unless stderr is a file;
// the spinner itself also stays silent when that file is not a terminal.
func (a *app) spin(msg string) func() {
	f, ok := a.errOut.(*os.File)
	if !ok || a.jsonOut {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
		spinner.WithWriterFile(f),
		spinner.WithSuffix(" "+msg),
	)
	s.Start()
	return s.Stop
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func resolveHome(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv("MNEMO_HOME"); env != "" {
		return env, nil
	}
	userHome, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(userHome, ".mnemo"), nil
}

func loadConfig(home, path string) (config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	for _, name := range []string{"config.yaml", "config.yml", "config.json"} {
		p := filepath.Join(home, name)
		if _, err := os.Stat(p); err == nil {
			return config.Load(p)
		}
	}
	return config.Default(), nil
}

// withApp runs fn with an opened app and closes it afterwards.
func withApp(opts *options, fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd, opts)
		if err != nil {
			return err
		}
		runErr := fn(cmd, a, args)
		closeErr := a.Close()
		if runErr != nil {
			return runErr
		}
		return closeErr
	}
}
